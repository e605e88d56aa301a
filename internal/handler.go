package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Handler is the HTTP command surface: every mutation in the room
// lifecycle arrives here, gets rate-limited and authenticated, and is
// forwarded to the Room it targets. Modeled on the teacher's Handler
// (manager + logger, a Routes() mux, and a uniform JSON response
// formatter), generalized from a karaoke room's command set to
// StoryFill's (spec §6).
type Handler struct {
	store     *RoomStore
	narration *NarrationFacade
	limiter   *Limiter
	logger    *slog.Logger
}

// NewHandler builds a Handler wired to the given dependencies.
func NewHandler(store *RoomStore, narration *NarrationFacade, limiter *Limiter, logger *slog.Logger) *Handler {
	return &Handler{store: store, narration: narration, limiter: limiter, logger: logger}
}

// Routes registers the full HTTP command surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.accessLog(fn))
	}

	mux.HandleFunc("GET /api/v1/templates", wrap(h.listTemplates))

	mux.HandleFunc("POST /api/v1/rooms", wrap(h.createRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/join", wrap(h.joinRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/leave", wrap(h.leaveRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/lock", wrap(h.lockRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/unlock", wrap(h.unlockRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/kick", wrap(h.kickPlayer))
	mux.HandleFunc("POST /api/v1/rooms/{code}/template", wrap(h.setTemplate))
	mux.HandleFunc("POST /api/v1/rooms/{code}/start", wrap(h.startRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/reveal", wrap(h.revealRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/replay", wrap(h.replayRoom))
	mux.HandleFunc("POST /api/v1/rooms/{code}/reconnect", wrap(h.reconnect))
	mux.HandleFunc("GET /api/v1/rooms/{code}", wrap(h.getRoom))
	mux.HandleFunc("GET /api/v1/rooms/{code}/progress", wrap(h.getProgress))
	mux.HandleFunc("GET /api/v1/rooms/{code}/prompts", wrap(h.getPrompts))
	mux.HandleFunc("POST /api/v1/rooms/{code}/prompts/{prompt_id}", wrap(h.submitPrompt))
	mux.HandleFunc("GET /api/v1/rooms/{code}/rounds/{round_id}/story", wrap(h.getStory))

	mux.HandleFunc("POST /api/v1/rooms/{code}/narration", wrap(h.requestNarration))
	mux.HandleFunc("GET /api/v1/rooms/{code}/narration", wrap(h.getNarration))
	mux.HandleFunc("POST /api/v1/rooms/{code}/narration/playback", wrap(h.playbackAction))

	mux.HandleFunc("POST /api/v1/rooms/{code}/share", wrap(h.createShare))
	mux.HandleFunc("GET /api/v1/share/{token}", wrap(h.getShare))

	mux.HandleFunc("GET /health", wrap(h.health))

	return mux
}

// ---- request/response bodies ----

type createRoomRequest struct {
	DisplayName string `json:"display_name"`
	TemplateID  string `json:"template_id"`
}

type createRoomResponse struct {
	Snapshot    Snapshot `json:"room"`
	PlayerID    string   `json:"player_id"`
	PlayerToken string   `json:"player_token"`
}

type joinRoomRequest struct {
	DisplayName string `json:"display_name"`
}

type joinRoomResponse struct {
	Snapshot    Snapshot `json:"room"`
	PlayerID    string   `json:"player_id"`
	PlayerToken string   `json:"player_token"`
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

type kickRequest struct {
	PlayerID string `json:"player_id"`
}

type templateRequest struct {
	TemplateID string `json:"template_id"`
}

type submitPromptRequest struct {
	Value string `json:"value"`
}

type storyResponse struct {
	RoundID string `json:"round_id"`
	Story   string `json:"story"`
}

type reconnectResponse struct {
	Snapshot Snapshot  `json:"room"`
	Prompts  []*Prompt `json:"prompts"`
}

type playbackRequest struct {
	Action string `json:"action"`
}

// ---- auth helpers ----

// playerToken reads the caller's player token from the Authorization
// header, expecting "Bearer <token>" (spec §6: bearer-token auth, no
// cookies or sessions).
func playerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

func (h *Handler) roomByCode(w http.ResponseWriter, r *http.Request) (*Room, bool) {
	room, err := h.store.GetByCode(r.PathValue("code"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return room, true
}

func (h *Handler) authedPlayer(w http.ResponseWriter, r *http.Request, room *Room) (*Player, bool) {
	token := playerToken(r)
	if token == "" {
		h.writeError(w, errAuth("player token required"))
		return nil, false
	}
	room.Lock()
	p := room.playerByToken(token)
	room.Unlock()
	if p == nil {
		h.writeError(w, errAuth("invalid player token"))
		return nil, false
	}
	return p, true
}

func (h *Handler) rateLimit(w http.ResponseWriter, r *http.Request, bucket string, limit int64, window time.Duration) bool {
	return h.rateLimitKey(w, r, bucket+":"+clientIP(r), limit, window)
}

// rateLimitRoomBucket enforces a per-room bucket (spec §4.8's
// "room:{code}:{action}" keying) instead of the default per-IP one, for
// actions whose abuse potential is about hammering one room's shared
// resources rather than one caller's IP.
func (h *Handler) rateLimitRoomBucket(w http.ResponseWriter, r *http.Request, action string, limit int64, window time.Duration) bool {
	return h.rateLimitKey(w, r, "room:"+r.PathValue("code")+":"+action, limit, window)
}

func (h *Handler) rateLimitKey(w http.ResponseWriter, r *http.Request, key string, limit int64, window time.Duration) bool {
	if h.limiter == nil {
		return true
	}
	if err := h.limiter.Allow(r.Context(), key, limit, window); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	return r.RemoteAddr
}

func decodeJSON(r *http.Request, dst any) *Error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errValidation("invalid request body")
	}
	return nil
}

// ---- handlers ----

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListTemplates())
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimit(w, r, "create_room", 10, time.Minute) {
		return
	}

	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	templateID := req.TemplateID
	if templateID == "" {
		templateID = ListTemplates()[0].ID
	}

	room, host, err := h.store.CreateRoom(templateID, req.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createRoomResponse{
		Snapshot:    room.Snapshot(),
		PlayerID:    host.ID,
		PlayerToken: host.Token,
	})
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.Snapshot())
}

func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimit(w, r, "join_room", 20, time.Minute) {
		return
	}
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}

	var req joinRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	player, snapshot, err := room.Join(req.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRoomResponse{Snapshot: snapshot, PlayerID: player.ID, PlayerToken: player.Token})
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	player, ok := h.authedPlayer(w, r, room)
	if !ok {
		return
	}

	snapshot, err := room.Leave(player.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) lockRoom(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

func (h *Handler) unlockRoom(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *Handler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	snapshot, err := room.SetLocked(playerToken(r), locked)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) kickPlayer(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	var req kickRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	snapshot, err := room.Kick(playerToken(r), req.PlayerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) setTemplate(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	snapshot, err := room.SetTemplate(playerToken(r), req.TemplateID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) startRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	snapshot, err := room.Start(playerToken(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) revealRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	snapshot, err := room.Reveal(playerToken(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) replayRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	snapshot, err := room.Replay(playerToken(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) reconnect(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	player, ok := h.authedPlayer(w, r, room)
	if !ok {
		return
	}
	snapshot, _, err := room.SetConnected(player.ID, true)
	if err != nil {
		h.writeError(w, err)
		return
	}
	prompts, err := room.PromptsFor(player.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconnectResponse{Snapshot: snapshot, Prompts: prompts})
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.Snapshot().Progress)
}

func (h *Handler) getPrompts(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	player, ok := h.authedPlayer(w, r, room)
	if !ok {
		return
	}
	prompts, err := room.PromptsFor(player.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *Handler) submitPrompt(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimit(w, r, "submit_prompt", 60, time.Minute) {
		return
	}
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	player, ok := h.authedPlayer(w, r, room)
	if !ok {
		return
	}

	var req submitPromptRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	snapshot, err := room.SubmitPrompt(player.ID, r.PathValue("prompt_id"), req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) getStory(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	roundID := r.PathValue("round_id")
	story, err := room.Story(roundID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, storyResponse{RoundID: roundID, Story: story})
}

func (h *Handler) requestNarration(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimitRoomBucket(w, r, "request_narration", 3, 10*time.Minute) {
		return
	}
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	view, err := room.RequestNarration(playerToken(r), h.narration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getNarration(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	view, err := room.GetNarration()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) playbackAction(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	var req playbackRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := room.UpdatePlayback(req.Action)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) createShare(w http.ResponseWriter, r *http.Request) {
	room, ok := h.roomByCode(w, r)
	if !ok {
		return
	}
	share, err := room.CreateShare(playerToken(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.store.RegisterShare(share)
	writeJSON(w, http.StatusOK, share)
}

func (h *Handler) getShare(w http.ResponseWriter, r *http.Request) {
	share, err := h.store.GetShare(r.PathValue("token"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, share)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- middleware ----

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) accessLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	}
}

func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("panic handling request", "error", err, "method", r.Method, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "an unexpected error occurred", Code: "INTERNAL"})
			}
		}()
		next(w, r)
	}
}
