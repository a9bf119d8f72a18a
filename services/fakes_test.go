package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/repositories"
	"github.com/Dosada05/grid-league/storage"
)

// --- transactor ---

type fakeTx struct {
	commitErr error
	calls     int
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.calls++
	if err := fn(nil); err != nil {
		return err
	}
	return t.commitErr
}

// --- seasons ---

type fakeSeasonRepo struct {
	mu      sync.Mutex
	seasons map[int]*models.Season
	nextID  int
}

func newFakeSeasonRepo(seasons ...*models.Season) *fakeSeasonRepo {
	r := &fakeSeasonRepo{seasons: map[int]*models.Season{}, nextID: 100}
	for _, s := range seasons {
		r.seasons[s.ID] = s
	}
	return r
}

func (r *fakeSeasonRepo) Create(_ context.Context, season *models.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seasons {
		if s.Name == season.Name {
			return repositories.ErrSeasonNameConflict
		}
	}
	r.nextID++
	season.ID = r.nextID
	season.CreatedAt = time.Now()
	cp := *season
	r.seasons[season.ID] = &cp
	return nil
}

func (r *fakeSeasonRepo) GetByID(_ context.Context, id int) (*models.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seasons[id]
	if !ok {
		return nil, repositories.ErrSeasonNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSeasonRepo) GetActive(_ context.Context) (*models.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seasons {
		if s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repositories.ErrNoActiveSeason
}

func (r *fakeSeasonRepo) List(_ context.Context) ([]*models.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Season, 0, len(r.seasons))
	for _, s := range r.seasons {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSeasonRepo) Activate(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seasons[id]; !ok {
		return repositories.ErrSeasonNotFound
	}
	for sid, s := range r.seasons {
		s.IsActive = sid == id
	}
	return nil
}

// --- races ---

type fakeRaceRepo struct {
	mu     sync.Mutex
	races  map[int]*models.Race
	nextID int
}

func newFakeRaceRepo(races ...*models.Race) *fakeRaceRepo {
	r := &fakeRaceRepo{races: map[int]*models.Race{}, nextID: 100}
	for _, race := range races {
		r.races[race.ID] = race
	}
	return r
}

func (r *fakeRaceRepo) Create(_ context.Context, race *models.Race) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	race.ID = r.nextID
	cp := *race
	r.races[race.ID] = &cp
	return nil
}

func (r *fakeRaceRepo) GetByID(_ context.Context, id int) (*models.Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	race, ok := r.races[id]
	if !ok {
		return nil, repositories.ErrRaceNotFound
	}
	cp := *race
	return &cp, nil
}

func (r *fakeRaceRepo) ListBySeason(_ context.Context, _ repositories.SQLExecutor, seasonID int) ([]*models.Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Race, 0)
	for _, race := range r.races {
		if race.SeasonID == seasonID {
			cp := *race
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeRaceRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.RaceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	race, ok := r.races[id]
	if !ok {
		return repositories.ErrRaceNotFound
	}
	race.Status = status
	return nil
}

func (r *fakeRaceRepo) status(id int) models.RaceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.races[id].Status
}

// --- results ---

type fakeResultRepo struct {
	mu       sync.Mutex
	byRace   map[int][]*models.RaceResult
	races    *fakeRaceRepo
	failNext error
}

func newFakeResultRepo(races *fakeRaceRepo) *fakeResultRepo {
	return &fakeResultRepo{byRace: map[int][]*models.RaceResult{}, races: races}
}

func copyResults(rows []*models.RaceResult) []*models.RaceResult {
	out := make([]*models.RaceResult, len(rows))
	for i, rr := range rows {
		cp := *rr
		out[i] = &cp
	}
	return out
}

func (r *fakeResultRepo) ListByRace(_ context.Context, _ repositories.SQLExecutor, raceID int) ([]*models.RaceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyResults(r.byRace[raceID]), nil
}

func (r *fakeResultRepo) ListBySeason(ctx context.Context, _ repositories.SQLExecutor, seasonID int) (map[int][]*models.RaceResult, error) {
	races, _ := r.races.ListBySeason(ctx, nil, seasonID)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int][]*models.RaceResult)
	for _, race := range races {
		if rows, ok := r.byRace[race.ID]; ok && len(rows) > 0 {
			out[race.ID] = copyResults(rows)
		}
	}
	return out, nil
}

func (r *fakeResultRepo) ReplaceForRace(_ context.Context, _ repositories.SQLExecutor, raceID int, results []*models.RaceResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	for i, rr := range results {
		rr.RaceID = raceID
		rr.ID = raceID*1000 + i + 1
	}
	r.byRace[raceID] = copyResults(results)
	return nil
}

func (r *fakeResultRepo) set(raceID int, rows ...*models.RaceResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rr := range rows {
		rr.RaceID = raceID
	}
	r.byRace[raceID] = rows
}

func (r *fakeResultRepo) rows(raceID int) []*models.RaceResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyResults(r.byRace[raceID])
}

// --- drivers ---

type fakeDriverRepo struct {
	mu      sync.Mutex
	drivers map[int]*models.Driver
	nextID  int
}

func newFakeDriverRepo(drivers ...*models.Driver) *fakeDriverRepo {
	r := &fakeDriverRepo{drivers: map[int]*models.Driver{}, nextID: 100}
	for _, d := range drivers {
		r.drivers[d.ID] = d
	}
	return r
}

func (r *fakeDriverRepo) get(id int) (*models.Driver, bool) {
	d, ok := r.drivers[id]
	if !ok {
		return nil, false
	}
	cp := *d
	return &cp, true
}

func (r *fakeDriverRepo) Create(_ context.Context, driver *models.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.DriverNumber == driver.DriverNumber {
			return repositories.ErrDriverNumberConflict
		}
		if d.Username == driver.Username {
			return repositories.ErrDriverUsernameTaken
		}
	}
	r.nextID++
	driver.ID = r.nextID
	cp := *driver
	r.drivers[driver.ID] = &cp
	return nil
}

func (r *fakeDriverRepo) GetByID(_ context.Context, id int) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.get(id)
	if !ok {
		return nil, repositories.ErrDriverNotFound
	}
	return d, nil
}

func (r *fakeDriverRepo) ListByIDs(_ context.Context, ids []int) ([]*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Driver, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.get(id); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDriverRepo) sorted(filter func(*models.Driver) bool) []*models.Driver {
	out := make([]*models.Driver, 0)
	for id := range r.drivers {
		d, _ := r.get(id)
		if filter(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeDriverRepo) List(_ context.Context, includeRetired bool) ([]*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(d *models.Driver) bool { return includeRetired || !d.Retired }), nil
}

func (r *fakeDriverRepo) ListByTeam(_ context.Context, teamID int) ([]*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(d *models.Driver) bool { return d.TeamID != nil && *d.TeamID == teamID }), nil
}

func (r *fakeDriverRepo) Search(_ context.Context, q string, limit int) ([]*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(d *models.Driver) bool {
		return strings.Contains(strings.ToLower(d.Username), strings.ToLower(q)) || strconv.Itoa(d.DriverNumber) == q
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDriverRepo) Update(_ context.Context, driver *models.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[driver.ID]; !ok {
		return repositories.ErrDriverNotFound
	}
	for id, d := range r.drivers {
		if id != driver.ID && d.DriverNumber == driver.DriverNumber {
			return repositories.ErrDriverNumberConflict
		}
	}
	cp := *driver
	r.drivers[driver.ID] = &cp
	return nil
}

func (r *fakeDriverRepo) SetTeam(_ context.Context, driverID int, teamID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return repositories.ErrDriverNotFound
	}
	d.TeamID = teamID
	return nil
}

func (r *fakeDriverRepo) SetRetired(_ context.Context, driverID int, retired bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return repositories.ErrDriverNotFound
	}
	d.Retired = retired
	return nil
}

func (r *fakeDriverRepo) UpdateLiveryKey(_ context.Context, driverID int, key *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return repositories.ErrDriverNotFound
	}
	d.LiveryKey = key
	return nil
}

// --- teams ---

type fakeTeamRepo struct {
	mu     sync.Mutex
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo(teams ...*models.Team) *fakeTeamRepo {
	r := &fakeTeamRepo{teams: map[int]*models.Team{}, nextID: 100}
	for _, t := range teams {
		r.teams[t.ID] = t
	}
	return r
}

func (r *fakeTeamRepo) Create(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	r.nextID++
	team.ID = r.nextID
	cp := *team
	r.teams[team.ID] = &cp
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTeamRepo) List(_ context.Context) ([]*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Team, 0, len(r.teams))
	for _, t := range r.teams {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[team.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Name = team.Name
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, teamID int, key *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = key
	return nil
}

// --- standings snapshot ---

type fakeStandingRepo struct {
	mu       sync.Mutex
	bySeason map[int][]*models.ChampionshipStanding
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{bySeason: map[int][]*models.ChampionshipStanding{}}
}

func (r *fakeStandingRepo) ListBySeason(_ context.Context, _ repositories.SQLExecutor, seasonID int) ([]*models.ChampionshipStanding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ChampionshipStanding, len(r.bySeason[seasonID]))
	copy(out, r.bySeason[seasonID])
	return out, nil
}

func (r *fakeStandingRepo) ReplaceForSeason(_ context.Context, _ repositories.SQLExecutor, seasonID int, rows []*models.ChampionshipStanding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySeason[seasonID] = rows
	return nil
}

// --- live + storage ---

type publishedMessage struct {
	SeasonID int
	Type     string
	Payload  interface{}
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (b *fakeBroadcaster) PublishSeason(seasonID int, messageType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, publishedMessage{SeasonID: seasonID, Type: messageType, Payload: payload})
}

func (b *fakeBroadcaster) sent() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedMessage(nil), b.messages...)
}

type fakeUploader struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (u *fakeUploader) Upload(_ context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if u.uploadErr != nil {
		return nil, u.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	u.types[key] = contentType
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.objects[key]; !ok {
		return errors.New("no such key")
	}
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.test/" + key
}

// --- penalties ---

type fakePenaltyRepo struct {
	mu        sync.Mutex
	penalties map[int]*models.Penalty
	nextID    int
	createErr error
}

func newFakePenaltyRepo() *fakePenaltyRepo {
	return &fakePenaltyRepo{penalties: map[int]*models.Penalty{}}
}

func (r *fakePenaltyRepo) Create(_ context.Context, _ repositories.SQLExecutor, penalty *models.Penalty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	penalty.ID = r.nextID
	penalty.CreatedAt = time.Now()
	cp := *penalty
	r.penalties[penalty.ID] = &cp
	return nil
}

func (r *fakePenaltyRepo) GetByID(_ context.Context, id int) (*models.Penalty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.penalties[id]
	if !ok {
		return nil, repositories.ErrPenaltyNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePenaltyRepo) List(_ context.Context, filter repositories.PenaltyFilter) ([]*models.Penalty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Penalty, 0)
	for _, p := range r.penalties {
		if filter.DriverID != 0 && p.DriverID != filter.DriverID {
			continue
		}
		if filter.RaceID != 0 && (p.RaceID == nil || *p.RaceID != filter.RaceID) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakePenaltyRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.penalties[id]; !ok {
		return repositories.ErrPenaltyNotFound
	}
	delete(r.penalties, id)
	return nil
}
