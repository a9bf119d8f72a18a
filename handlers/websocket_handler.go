package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dosada05/grid-league/live"
	"github.com/Dosada05/grid-league/services"
	"github.com/Dosada05/grid-league/standings"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub              *live.Hub
	standingsService services.StandingsService
	upgrader         websocket.Upgrader
}

// NewWebSocketHandler принимает список разрешённых Origin; "*" или пустой список
// разрешают все.
func NewWebSocketHandler(hub *live.Hub, ss services.StandingsService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:              hub,
		standingsService: ss,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWs подписывает клиента на обновления таблицы сезона.
// Клиент подключается к /ws/seasons/{seasonID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Проверка сезона до upgrade, чтобы ошибка ушла обычным HTTP-ответом.
	if _, err := h.standingsService.GetStandings(r.Context(), seasonID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		slog.WarnContext(r.Context(), "websocket upgrade failed", slog.Int("season_id", seasonID), slog.Any("error", err))
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: live.SeasonRoom(seasonID),
	}
	if !h.subscribeWithSnapshot(r.Context(), client, seasonID) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	slog.DebugContext(r.Context(), "websocket client registered", slog.String("room", client.Room))
}

// subscribeWithSnapshot регистрирует клиента и первым сообщением кладёт текущую
// таблицу. Снимок читается уже после регистрации под client.Mu: рассылка,
// пришедшая в это время, встанет в очередь после снимка, а не потеряется.
func (h *WebSocketHandler) subscribeWithSnapshot(ctx context.Context, client *live.Client, seasonID int) bool {
	client.Mu.Lock()
	defer client.Mu.Unlock()

	if !h.hub.Subscribe(client) {
		slog.DebugContext(ctx, "live hub is stopped, dropping websocket client", slog.Int("season_id", seasonID))
		return false
	}

	view, err := h.standingsService.GetStandings(ctx, seasonID)
	if err != nil {
		// клиент остаётся подписан и получит следующее обновление
		slog.WarnContext(ctx, "failed to load standings snapshot for websocket client",
			slog.Int("season_id", seasonID), slog.Any("error", err))
		return true
	}
	snapshot, err := json.Marshal(live.Message{
		Type:    live.MessageStandingsUpdated,
		Payload: services.StandingsUpdatedPayload{SeasonID: seasonID, Standings: standingRows(view)},
		RoomID:  client.Room,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal standings snapshot", slog.Any("error", err))
		return true
	}
	if !client.IsClosed {
		select {
		case client.Send <- snapshot:
		default:
		}
	}
	return true
}

func standingRows(view *services.StandingsView) []standings.Standing {
	rows := make([]standings.Standing, len(view.Standings))
	for i, s := range view.Standings {
		rows[i] = s.Standing
	}
	return rows
}
