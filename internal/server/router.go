// Package server exposes solved and learned Blackjack policies as a
// read-only JSON API.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"blackjack-mdp/internal/agent"
	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/mdp"
)

// Entry is one state of a served policy.
type Entry struct {
	Player    int     `json:"player"`
	Dealer    int     `json:"dealer"`
	UsableAce bool    `json:"usable_ace"`
	Count     string  `json:"count,omitempty"`
	Action    string  `json:"action"`
	Stand     float64 `json:"q_stand"`
	Hit       float64 `json:"q_hit"`
}

// Server holds the policies it serves. Both are built before the router and
// never written afterwards, so handlers may run concurrently.
type Server struct {
	solved  []Entry
	lookup  map[mdp.State]Entry
	learned []Entry
	log     logrus.FieldLogger
}

// New prepares the solved table and, when learned is non-nil, the learned
// greedy policy with its action values. Learned actions follow the agent's
// own tie rule.
func New(solved *mdp.Result, learned map[blackjack.Observation][]float64, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{lookup: make(map[mdp.State]Entry), log: logger}
	for _, st := range mdp.States() {
		e := Entry{
			Player:    st.Player,
			Dealer:    st.Dealer,
			UsableAce: st.UsableAce,
			Action:    solved.Policy[st].String(),
			Stand:     solved.Stand[st],
			Hit:       solved.Hit[st],
		}
		s.solved = append(s.solved, e)
		s.lookup[st] = e
	}
	if learned != nil {
		s.learned = learnedEntries(learned)
	}
	return s
}

func learnedEntries(q map[blackjack.Observation][]float64) []Entry {
	obs := make([]blackjack.Observation, 0, len(q))
	for o := range q {
		obs = append(obs, o)
	}
	sort.Slice(obs, func(i, j int) bool {
		a, b := obs[i], obs[j]
		if a.Player != b.Player {
			return a.Player < b.Player
		}
		if a.Dealer != b.Dealer {
			return a.Dealer < b.Dealer
		}
		if a.UsableAce != b.UsableAce {
			return !a.UsableAce
		}
		return a.Count < b.Count
	})
	out := make([]Entry, 0, len(obs))
	for _, o := range obs {
		row := q[o]
		action := agent.Greedy(row)
		out = append(out, Entry{
			Player:    o.Player,
			Dealer:    o.Dealer,
			UsableAce: o.UsableAce,
			Count:     o.Count.String(),
			Action:    action.String(),
			Stand:     row[blackjack.Stand],
			Hit:       row[blackjack.Hit],
		})
	}
	return out
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/policy", s.handlePolicy)
		r.Get("/policy/{player}/{dealer}/{soft}", s.handleState)
		r.Get("/learned", s.handleLearned)
	})
	return r
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rows": s.solved})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := parseState(chi.URLParam(r, "player"), chi.URLParam(r, "dealer"), chi.URLParam(r, "soft"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.lookup[st])
}

func (s *Server) handleLearned(w http.ResponseWriter, r *http.Request) {
	if s.learned == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no learned policy; start the server with training episodes"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": s.learned})
}

// parseState reads a state from path segments. The dealer upcard may be
// given as "A"; soft accepts anything strconv.ParseBool does.
func parseState(player, dealer, soft string) (mdp.State, error) {
	p, err := strconv.Atoi(player)
	if err != nil {
		return mdp.State{}, fmt.Errorf("player total %q: %w", player, err)
	}
	var d int
	if strings.EqualFold(dealer, "a") {
		d = blackjack.Ace
	} else if d, err = strconv.Atoi(dealer); err != nil {
		return mdp.State{}, fmt.Errorf("dealer upcard %q: %w", dealer, err)
	}
	usable, err := strconv.ParseBool(soft)
	if err != nil {
		return mdp.State{}, fmt.Errorf("soft flag %q: %w", soft, err)
	}
	st := mdp.State{Player: p, Dealer: d, UsableAce: usable}
	if !st.Valid() {
		return mdp.State{}, fmt.Errorf("state %s is outside player %d-%d, dealer %d-%d",
			st, mdp.MinPlayer, mdp.MaxPlayer, mdp.MinDealer, mdp.MaxDealer)
	}
	return st, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
