package agent

import (
	"encoding/json"
	"errors"
	"net/http"

	"recplan/searcher"

	"github.com/rs/zerolog/log"
)

type actRequest[S any] struct {
	State       S       `json:"state"`
	Temperature float64 `json:"temperature"`
}

type actResponse[A comparable] struct {
	Action A               `json:"action"`
	Policy []ActionProb[A] `json:"policy"`
	Search string          `json:"search"`
}

// EnvFactory builds an environment positioned at state and reports whether
// state is terminal.
type EnvFactory[S any, A comparable] func(state S) (searcher.Environment[S, A], bool)

// NewHandler serves POST /act: a JSON state in, the planned action out.
func NewHandler[S any, A comparable](agent *Agent[S, A], newEnv EnvFactory[S, A]) http.Handler {
	// Create a local mux rather than using the global DefaultServeMux
	mux := http.NewServeMux()
	mux.HandleFunc("POST /act", func(w http.ResponseWriter, r *http.Request) {
		var payload actRequest[S]
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}

		env, terminal := newEnv(payload.State)
		result, err := agent.Search(r.Context(), env, terminal, nil)
		if errors.Is(err, searcher.ErrTerminalRoot) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to plan action")
			http.Error(w, "failed to plan: "+err.Error(), http.StatusInternalServerError)
			return
		}

		response := actResponse[A]{
			Action: result.Action,
			Policy: VisitPolicy(result.Tree, payload.Temperature),
			Search: result.Metric.SearchID,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "failed to encode action: "+err.Error(), http.StatusInternalServerError)
		}
	})
	return mux
}
