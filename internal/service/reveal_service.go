package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/observability"
	"github.com/hackstage/hackstage-api/internal/repository"
)

const (
	revealSendBufferSize = 16
	revealEventStarted   = "reveal.started"
	revealEventRevealed  = "reveal.revealed"
	revealEventFinished  = "reveal.finished"
)

// ErrRevealNotStarted indicates no ceremony is in progress for the event.
var ErrRevealNotStarted = errors.New("reveal ceremony has not been started")

// ErrRevealAlreadyStarted indicates Start was called twice.
var ErrRevealAlreadyStarted = errors.New("reveal ceremony already started")

// RevealService runs the ranked reveal ceremony: standings are computed
// once at start, cached, and disclosed one rank at a time from last place
// to first. Progress is pushed to websocket viewers and relayed across
// nodes through redis pub/sub.
type RevealService interface {
	Start(ctx context.Context, hackathonID uint) (dto.RevealStateResponse, error)
	Next(ctx context.Context, hackathonID uint) (dto.RevealStateResponse, error)
	State(ctx context.Context, hackathonID uint) (dto.RevealStateResponse, error)
	ServeViewer(conn *websocket.Conn, hackathonID uint)
	StartRelay(ctx context.Context)
}

// revealCeremony is the authoritative ceremony state. Standings are ordered
// by rank ascending (index 0 is the winner); revealedFrom is the lowest rank
// number already disclosed, or len+1 when nothing is revealed yet.
type revealCeremony struct {
	HackathonID  uint                 `json:"hackathon_id"`
	Standings    []dto.RevealStanding `json:"standings"`
	RevealedFrom int                  `json:"revealed_from"`
	StartedAt    time.Time            `json:"started_at"`
}

type revealEventEnvelope struct {
	Source string          `json:"source"`
	Event  dto.RevealEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

type revealService struct {
	submissions repository.SubmissionRepository
	hackathons  repository.HackathonRepository
	ratings     repository.RatingRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
	nodeID      string

	mu         sync.Mutex
	ceremonies map[uint]*revealCeremony
	hub        *revealHub
}

// NewRevealService constructs a RevealService instance. Redis is optional;
// without it the ceremony is single-node and lost on restart.
func NewRevealService(
	submissions repository.SubmissionRepository,
	hackathons repository.HackathonRepository,
	ratings repository.RatingRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) RevealService {
	return &revealService{
		submissions: submissions,
		hackathons:  hackathons,
		ratings:     ratings,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "reveal_service").Logger(),
		now:         time.Now,
		nodeID:      uuid.NewString(),
		ceremonies:  map[uint]*revealCeremony{},
		hub: &revealHub{
			rooms: map[uint]map[*revealViewer]struct{}{},
			log:   logger.With().Str("component", "reveal_hub").Logger(),
		},
	}
}

func (s *revealService) Start(ctx context.Context, hackathonID uint) (dto.RevealStateResponse, error) {
	hackathon, err := s.hackathons.GetByID(ctx, hackathonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RevealStateResponse{}, ErrHackathonNotFound
		}
		return dto.RevealStateResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.loadCeremony(ctx, hackathonID); existing != nil {
		return dto.RevealStateResponse{}, ErrRevealAlreadyStarted
	}

	standings, err := s.computeStandings(ctx, hackathon)
	if err != nil {
		return dto.RevealStateResponse{}, err
	}

	ceremony := &revealCeremony{
		HackathonID:  hackathonID,
		Standings:    standings,
		RevealedFrom: len(standings) + 1,
		StartedAt:    s.now(),
	}
	s.storeCeremony(ctx, ceremony)

	s.logger.Info().
		Uint("hackathon_id", hackathonID).
		Int("entries", len(standings)).
		Msg("reveal ceremony started")

	state := s.snapshot(ceremony)
	s.announce(ctx, dto.RevealEvent{Type: revealEventStarted, State: state})
	return state, nil
}

func (s *revealService) Next(ctx context.Context, hackathonID uint) (dto.RevealStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ceremony := s.loadCeremony(ctx, hackathonID)
	if ceremony == nil {
		return dto.RevealStateResponse{}, ErrRevealNotStarted
	}

	// Stepping past the winner is a no-op; the final state is re-announced.
	if ceremony.RevealedFrom <= 1 {
		state := s.snapshot(ceremony)
		return state, nil
	}

	ceremony.RevealedFrom--
	ceremony.Standings[ceremony.RevealedFrom-1].Revealed = true
	s.storeCeremony(ctx, ceremony)

	state := s.snapshot(ceremony)
	eventType := revealEventRevealed
	if state.Finished {
		eventType = revealEventFinished
		s.markRevealed(ctx, hackathonID)
	}
	s.announce(ctx, dto.RevealEvent{Type: eventType, State: state})

	return state, nil
}

func (s *revealService) State(ctx context.Context, hackathonID uint) (dto.RevealStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ceremony := s.loadCeremony(ctx, hackathonID)
	if ceremony == nil {
		return dto.RevealStateResponse{}, ErrRevealNotStarted
	}

	return s.snapshot(ceremony), nil
}

// computeStandings ranks submissions by the weighted blend of the judges'
// average and the AI score. A missing side falls back to the other so an
// unjudged or unscored entry still places.
func (s *revealService) computeStandings(ctx context.Context, hackathon models.Hackathon) ([]dto.RevealStanding, error) {
	submissions, err := s.submissions.ListByHackathon(ctx, hackathon.ID)
	if err != nil {
		return nil, err
	}

	ratings, err := s.ratings.ListByHackathon(ctx, hackathon.ID)
	if err != nil {
		return nil, err
	}

	sums := map[string]int{}
	counts := map[string]int{}
	for _, rating := range ratings {
		sums[rating.SubmissionID] += rating.Score
		counts[rating.SubmissionID]++
	}

	standings := make([]dto.RevealStanding, 0, len(submissions))
	for _, submission := range submissions {
		standing := dto.RevealStanding{
			SubmissionID: submission.ID,
			Title:        submission.Title,
			TeamName:     submission.TeamName,
			AIScore:      submission.AI.Score,
		}
		if counts[submission.ID] > 0 {
			average := float64(sums[submission.ID]) / float64(counts[submission.ID])
			standing.JudgeAverage = &average
		}
		standing.FinalScore = blendScores(standing.JudgeAverage, standing.AIScore, hackathon.JudgeWeight)
		standings = append(standings, standing)
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].FinalScore != standings[j].FinalScore {
			return standings[i].FinalScore > standings[j].FinalScore
		}
		return standings[i].SubmissionID < standings[j].SubmissionID
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}

	return standings, nil
}

func blendScores(judgeAverage *float64, aiScore *int, judgeWeight float64) float64 {
	switch {
	case judgeAverage != nil && aiScore != nil:
		return judgeWeight**judgeAverage + (1-judgeWeight)*float64(*aiScore)
	case judgeAverage != nil:
		return *judgeAverage
	case aiScore != nil:
		return float64(*aiScore)
	default:
		return 0
	}
}

// snapshot renders the ceremony for clients, masking unrevealed entries so
// the audience view cannot peek ahead.
func (s *revealService) snapshot(ceremony *revealCeremony) dto.RevealStateResponse {
	standings := make([]dto.RevealStanding, 0, len(ceremony.Standings))
	var lastRevealed *dto.RevealStanding
	for _, standing := range ceremony.Standings {
		if !standing.Revealed {
			standings = append(standings, dto.RevealStanding{Rank: standing.Rank})
			continue
		}
		standings = append(standings, standing)
		if standing.Rank == ceremony.RevealedFrom {
			last := standing
			lastRevealed = &last
		}
	}

	return dto.RevealStateResponse{
		HackathonID:  ceremony.HackathonID,
		Started:      true,
		Finished:     ceremony.RevealedFrom <= 1,
		NextRank:     ceremony.RevealedFrom - 1,
		TotalEntries: len(ceremony.Standings),
		Standings:    standings,
		LastRevealed: lastRevealed,
		GeneratedAt:  s.now(),
	}
}

func (s *revealService) markRevealed(ctx context.Context, hackathonID uint) {
	hackathon, err := s.hackathons.GetByID(ctx, hackathonID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("hackathon_id", hackathonID).Msg("could not load hackathon to mark revealed")
		return
	}
	hackathon.Status = models.HackathonStatusRevealed
	if err := s.hackathons.Update(ctx, &hackathon); err != nil {
		s.logger.Warn().Err(err).Uint("hackathon_id", hackathonID).Msg("could not mark hackathon revealed")
	}
}

func revealCacheKey(hackathonID uint) string {
	return fmt.Sprintf("reveal:state:%d", hackathonID)
}

func revealChannel(hackathonID uint) string {
	return fmt.Sprintf("reveal:events:%d", hackathonID)
}

// loadCeremony returns the in-memory ceremony, falling back to the redis
// copy so a restarted node can resume a running ceremony. Callers hold s.mu.
func (s *revealService) loadCeremony(ctx context.Context, hackathonID uint) *revealCeremony {
	if ceremony, ok := s.ceremonies[hackathonID]; ok {
		return ceremony
	}
	if s.cache == nil {
		return nil
	}

	cached, err := s.cache.Get(ctx, revealCacheKey(hackathonID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read reveal cache")
		}
		return nil
	}

	var ceremony revealCeremony
	if err := json.Unmarshal([]byte(cached), &ceremony); err != nil {
		s.logger.Warn().Err(err).Msg("discarding corrupt reveal cache entry")
		return nil
	}

	s.ceremonies[hackathonID] = &ceremony
	return &ceremony
}

func (s *revealService) storeCeremony(ctx context.Context, ceremony *revealCeremony) {
	s.ceremonies[ceremony.HackathonID] = ceremony

	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(ceremony)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal reveal state for cache")
		return
	}
	if err := s.cache.Set(ctx, revealCacheKey(ceremony.HackathonID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache reveal state")
	}
}

// announce pushes the event to local viewers and relays it to other nodes.
func (s *revealService) announce(ctx context.Context, event dto.RevealEvent) {
	s.hub.broadcast(event.State.HackathonID, event)

	if s.cache == nil {
		return
	}
	envelope := revealEventEnvelope{Source: s.nodeID, Event: event, SentAt: s.now().UTC()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	if err := s.cache.Publish(ctx, revealChannel(event.State.HackathonID), payload).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to relay reveal event")
	}
}

// StartRelay subscribes to ceremony events published by other nodes so every
// node's websocket viewers see the same steps.
func (s *revealService) StartRelay(ctx context.Context) {
	if s.cache == nil {
		return
	}

	go func() {
		pubsub := s.cache.PSubscribe(ctx, "reveal:events:*")
		defer func() {
			_ = pubsub.Close()
		}()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.logger.Error().Err(err).Msg("reveal relay subscription closed")
				return
			}

			var envelope revealEventEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				s.logger.Warn().Err(err).Msg("invalid reveal relay event")
				continue
			}
			if envelope.Source == s.nodeID {
				continue
			}
			s.hub.broadcast(envelope.Event.State.HackathonID, envelope.Event)
		}
	}()
}

// ServeViewer attaches a read-only websocket client to the ceremony room.
// The current state is sent immediately when a ceremony is running.
func (s *revealService) ServeViewer(conn *websocket.Conn, hackathonID uint) {
	viewer := &revealViewer{
		conn:   conn,
		send:   make(chan dto.RevealEvent, revealSendBufferSize),
		closed: make(chan struct{}),
		hub:    s.hub,
		room:   hackathonID,
	}
	s.hub.register(viewer)

	s.mu.Lock()
	ceremony := s.loadCeremony(context.Background(), hackathonID)
	if ceremony != nil {
		state := s.snapshot(ceremony)
		select {
		case viewer.send <- dto.RevealEvent{Type: revealEventStarted, State: state}:
		default:
		}
	}
	s.mu.Unlock()

	go viewer.writer()
	viewer.reader()
}

// revealHub tracks websocket viewers per hackathon.
type revealHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*revealViewer]struct{}
	log   zerolog.Logger
}

type revealViewer struct {
	conn   *websocket.Conn
	send   chan dto.RevealEvent
	closed chan struct{}
	once   sync.Once
	hub    *revealHub
	room   uint
}

func (h *revealHub) register(viewer *revealViewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[viewer.room]; !exists {
		h.rooms[viewer.room] = make(map[*revealViewer]struct{})
	}
	h.rooms[viewer.room][viewer] = struct{}{}
	observability.RevealViewers().Inc()
	h.log.Debug().Uint("hackathon_id", viewer.room).Msg("reveal viewer connected")
}

func (h *revealHub) unregister(viewer *revealViewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if viewers, ok := h.rooms[viewer.room]; ok {
		if _, present := viewers[viewer]; present {
			delete(viewers, viewer)
			observability.RevealViewers().Dec()
		}
		if len(viewers) == 0 {
			delete(h.rooms, viewer.room)
		}
	}
	h.log.Debug().Uint("hackathon_id", viewer.room).Msg("reveal viewer disconnected")
}

func (h *revealHub) broadcast(room uint, event dto.RevealEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for viewer := range h.rooms[room] {
		select {
		case viewer.send <- event:
		default:
			h.log.Warn().Uint("hackathon_id", room).Msg("dropping reveal event for slow viewer")
		}
	}
}

// reader drains incoming frames; viewers never send, so any read result
// other than a close is discarded. The loop ends when the peer disconnects.
func (v *revealViewer) reader() {
	defer v.close()
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (v *revealViewer) writer() {
	defer v.close()
	for {
		select {
		case event, ok := <-v.send:
			if !ok {
				return
			}
			if err := v.conn.WriteJSON(event); err != nil {
				return
			}
		case <-time.After(30 * time.Second):
			if err := v.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-v.closed:
			return
		}
	}
}

func (v *revealViewer) close() {
	v.once.Do(func() {
		close(v.closed)
		v.hub.unregister(v)
		_ = v.conn.Close()
	})
}
