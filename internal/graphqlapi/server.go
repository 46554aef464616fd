package graphqlapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
)

// NewSchema parses the SDL in schema.go against root, wiring every Query,
// Mutation and Subscription field to a Root method or a resolver's field
// method.
func NewSchema(root *Root) (*graphql.Schema, error) {
	return graphql.ParseSchema(schema, root, graphql.UseFieldResolvers())
}

// NewHandler mounts the façade on a go-chi router with request logging
// and recovery: POST /graphql for
// queries and mutations via relay.Handler, and GET /graphql/stream for
// subscriptions, framed as newline-delimited JSON over a chunked response
// since this module's dependency set carries no websocket transport.
// healthy reports the chain follower's liveness for GET /healthz; it may be
// nil, in which case /healthz always reports ok (used by tests that don't
// wire a follower).
func NewHandler(s *graphql.Schema, healthy func() bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	relayHandler := &relay.Handler{Schema: s}
	r.Post("/graphql", relayHandler.ServeHTTP)
	r.Get("/graphql/stream", subscriptionStreamHandler(s))
	r.Get("/healthz", healthzHandler(healthy))

	return r
}

func healthzHandler(healthy func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil && !healthy() {
			http.Error(w, "chain follower unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

type subscriptionRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// subscriptionStreamHandler executes a subscription query and writes one
// JSON object per emitted value, flushing after each. The connection stays
// open until the subscription's channel closes or the client disconnects.
func subscriptionStreamHandler(s *graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req subscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid subscription request body", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		c, err := s.Subscribe(r.Context(), req.Query, req.OperationName, req.Variables)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		enc := json.NewEncoder(w)
		for {
			select {
			case <-r.Context().Done():
				return
			case response, ok := <-c:
				if !ok {
					return
				}
				if err := enc.Encode(response); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
