// Package trigger exposes the HTTP surface that fires sync runs: the manual
// POST /sync endpoint and the optional cron schedule.
package trigger

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/HerbigniauxBenoit/spsync/internal/config"
	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/sync"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
	"github.com/HerbigniauxBenoit/spsync/pkg/version"
)

// Server dispatches trigger requests to the runner. Every run starts from the
// configured defaults; a request may override individual switches per call.
type Server struct {
	runner   *sync.Runner
	defaults sync.Options
	logger   logging.Logger
}

func NewServer(runner *sync.Runner, defaults sync.Options, logger logging.Logger) *Server {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Server{runner: runner, defaults: defaults, logger: logger}
}

// Handler returns the trigger route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync", s.handleSync)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// syncResponse is the trigger's JSON envelope. The exit_code field carries
// the same three-valued contract as the process exit code.
type syncResponse struct {
	Status           string                `json:"status"`
	ExitCode         int                   `json:"exit_code"`
	Stats            *types.RunStats       `json:"stats,omitempty"`
	AppliedOverrides map[string]bool       `json:"applied_overrides"`
	Error            *types.CLIErrorDetail `json:"error,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := logging.ContextWithTraceID(r.Context(), uuid.New().String())
	logger := s.logger.WithContext(ctx)

	opts := s.defaults
	overrides := map[string]bool{}

	apply := func(name string, dst *bool) error {
		v := r.FormValue(name)
		if v == "" {
			return nil
		}
		b, err := config.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		overrides[name] = b
		return nil
	}

	for _, o := range []struct {
		name string
		dst  *bool
	}{
		{"force_full_sync", &opts.ForceFull},
		{"dry_run", &opts.DryRun},
		{"delete_orphaned_blobs", &opts.DeleteOrphans},
		{"sync_permissions", &opts.SyncPermissions},
	} {
		if err := apply(o.name, o.dst); err != nil {
			s.writeJSON(w, http.StatusBadRequest, syncResponse{
				Status:           "error",
				ExitCode:         utils.ExitConfigError,
				AppliedOverrides: overrides,
				Error:            &types.CLIErrorDetail{Code: utils.ErrCodeConfigInvalid, Message: err.Error()},
			})
			return
		}
	}

	logger.Info("sync trigger received",
		logging.F("remote", r.RemoteAddr),
		logging.F("overrides", overrides),
	)

	stats, err := s.runner.Run(ctx, opts)
	if utils.ErrorCode(err) == utils.ErrCodeRunInProgress {
		detail := utils.Detail(err)
		s.writeJSON(w, http.StatusConflict, syncResponse{
			Status:           "busy",
			ExitCode:         utils.ExitCodeForRun(nil, err),
			AppliedOverrides: overrides,
			Error:            &detail,
		})
		return
	}

	exit := utils.ExitCodeForRun(&stats, err)
	resp := syncResponse{
		Status:           "ok",
		ExitCode:         exit,
		Stats:            &stats,
		AppliedOverrides: overrides,
	}
	if exit != utils.ExitSuccess {
		resp.Status = "error"
	}
	if err != nil {
		detail := utils.Detail(err)
		resp.Error = &detail
	}
	s.writeJSON(w, httpStatusForExit(exit), resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get().Short(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode trigger response", logging.F("error", err.Error()))
	}
}

func httpStatusForExit(exit int) int {
	switch exit {
	case utils.ExitSuccess:
		return http.StatusOK
	case utils.ExitConfigError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
