package handlers

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dosada05/grid-league/live"
	"github.com/Dosada05/grid-league/models"
	"github.com/Dosada05/grid-league/services"
	"github.com/Dosada05/grid-league/standings"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveMessage struct {
	Type    string                           `json:"type"`
	Payload services.StandingsUpdatedPayload `json:"payload"`
}

func startLiveServer(t *testing.T, hub *live.Hub, ss services.StandingsService) string {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/seasons/{seasonID}", NewWebSocketHandler(hub, ss, nil).ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/seasons/1"
}

func seasonView(points int) *services.StandingsView {
	return &services.StandingsView{
		Season: &models.Season{ID: 1, Name: "Season 2026", IsActive: true},
		Standings: []services.StandingView{{
			Standing: standings.Standing{DriverID: 1, Rank: 1, Statistics: standings.Statistics{TotalPoints: points}},
		}},
	}
}

func readLive(t *testing.T, conn *websocket.Conn) liveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServeWsSnapshotThenConcurrentUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := live.NewHub(nil)
	go hub.Run(ctx)

	var calls atomic.Int32
	ss := &stubStandingsService{
		standings: func(ctx context.Context, seasonID int) (*services.StandingsView, error) {
			if calls.Add(1) == 2 {
				// обновление приходит, пока клиент читает снимок после подписки
				go hub.PublishSeason(1, live.MessageStandingsUpdated, services.StandingsUpdatedPayload{
					SeasonID:  1,
					RaceID:    99,
					Standings: []standings.Standing{{DriverID: 1, Rank: 1, Statistics: standings.Statistics{TotalPoints: 51}}},
				})
			}
			return seasonView(26), nil
		},
	}

	conn, _, err := websocket.DefaultDialer.Dial(startLiveServer(t, hub, ss), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readLive(t, conn)
	assert.Equal(t, live.MessageStandingsUpdated, first.Type)
	assert.Zero(t, first.Payload.RaceID)
	require.Len(t, first.Payload.Standings, 1)
	assert.Equal(t, 26, first.Payload.Standings[0].TotalPoints)

	second := readLive(t, conn)
	assert.Equal(t, 99, second.Payload.RaceID)
	assert.Equal(t, 51, second.Payload.Standings[0].TotalPoints)
}

func TestServeWsAfterHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := live.NewHub(nil)
	go hub.Run(ctx)
	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	ss := &stubStandingsService{
		standings: func(ctx context.Context, seasonID int) (*services.StandingsView, error) {
			return seasonView(25), nil
		},
	}
	conn, _, err := websocket.DefaultDialer.Dial(startLiveServer(t, hub, ss), nil)
	require.NoError(t, err)
	defer conn.Close()

	// сервер закрывает соединение, а не висит на регистрации
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "expected closed connection, got %v", err)
}

func TestServeWsUnknownSeasonBeforeUpgrade(t *testing.T) {
	hub := live.NewHub(nil)
	ss := &stubStandingsService{
		standings: func(ctx context.Context, seasonID int) (*services.StandingsView, error) {
			return nil, services.ErrSeasonNotFound
		},
	}
	_, resp, err := websocket.DefaultDialer.Dial(startLiveServer(t, hub, ss), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
