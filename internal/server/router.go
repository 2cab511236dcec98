package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/celgate/celgate/internal/authz"
	"github.com/celgate/celgate/internal/constants"
	"github.com/celgate/celgate/internal/util"
)

// NewRouter builds an http.ServeMux that routes
// * / to a version banner
// * /auth to the authorization decision handler
func NewRouter(pipeline *authz.Pipeline) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", rootHandler)
	mux.HandleFunc("/auth", authHandler(pipeline))
	return mux
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, "Hello from %s %s", constants.ServiceName, util.Version())
}

// authHandler maps the tri-state pipeline result onto HTTP statuses:
// 200 on allow, 401 on deny, 500 on a system error.
func authHandler(pipeline *authz.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result := pipeline.Evaluate(r)
		switch result.Decision {
		case authz.DecisionAllow:
			fmt.Fprint(w, "Access granted")
		case authz.DecisionDeny:
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

// NewShutdownContext creates a context for graceful server shutdown.
func NewShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
