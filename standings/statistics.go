package standings

import "math"

// Statistics: накопленная статистика пилота или команды за сезон.
// Всегда является функцией от истории результатов; вручную не изменяется.
type Statistics struct {
	TotalPoints       int      `json:"total_points"`
	Wins              int      `json:"wins"`
	Podiums           int      `json:"podiums"`
	Poles             int      `json:"poles"`
	FastestLaps       int      `json:"fastest_laps"`
	DNFs              int      `json:"dnfs"`
	RacesParticipated int      `json:"races_participated"`
	AveragePosition   *float64 `json:"average_position"`

	// Сумма и количество учтённых позиций: нужны, чтобы откатывать среднее.
	positionSum     int
	positionSamples int
}

// fold adds (sign = 1) or removes (sign = -1) one scored entry.
func (s *Statistics) fold(e ScoredEntry, policy AveragePolicy, sign int) {
	s.RacesParticipated += sign

	if position, finished := e.Finish.Position(); finished {
		s.TotalPoints += sign * e.Points
		if position == 1 {
			s.Wins += sign
		}
		if position <= 3 {
			s.Podiums += sign
		}
		if e.Pole {
			s.Poles += sign
		}
		if e.FastestLap {
			s.FastestLaps += sign
		}
		s.positionSum += sign * position
		s.positionSamples += sign
	} else {
		s.DNFs += sign
		if policy == AverageDNFAsLast {
			s.positionSum += sign * e.FieldSize
			s.positionSamples += sign
		}
	}

	s.refreshAverage()
}

func (s *Statistics) refreshAverage() {
	if s.positionSamples <= 0 {
		s.AveragePosition = nil
		return
	}
	avg := math.Round(float64(s.positionSum)/float64(s.positionSamples)*100) / 100
	s.AveragePosition = &avg
}

func (s Statistics) negative() bool {
	return s.TotalPoints < 0 || s.Wins < 0 || s.Podiums < 0 || s.Poles < 0 ||
		s.FastestLaps < 0 || s.DNFs < 0 || s.RacesParticipated < 0 ||
		s.positionSum < 0 || s.positionSamples < 0
}

func (s Statistics) zero() bool {
	return s.TotalPoints == 0 && s.Wins == 0 && s.Podiums == 0 && s.Poles == 0 &&
		s.FastestLaps == 0 && s.DNFs == 0 && s.RacesParticipated == 0 &&
		s.positionSum == 0 && s.positionSamples == 0
}

// DNFPercentage: доля сходов от числа стартов, в процентах с одним знаком.
func (s Statistics) DNFPercentage() float64 {
	if s.RacesParticipated == 0 {
		return 0
	}
	return math.Round(float64(s.DNFs)/float64(s.RacesParticipated)*1000) / 10
}

func (s Statistics) AvgPointsPerRace() float64 {
	if s.RacesParticipated == 0 {
		return 0
	}
	return math.Round(float64(s.TotalPoints)/float64(s.RacesParticipated)*100) / 100
}
