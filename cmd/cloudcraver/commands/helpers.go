package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudcraver/cloudcraver/internal/approval"
	"github.com/cloudcraver/cloudcraver/internal/audit"
	"github.com/cloudcraver/cloudcraver/internal/rbac"
)

// requireActor returns the acting user id or an error when no identity
// was resolved. Every privileged command threads this id explicitly.
func requireActor() (string, error) {
	if cfg.Actor == "" {
		return "", errors.New("actor identity required: pass --actor or set CLOUDCRAVER_ACTOR")
	}
	return cfg.Actor, nil
}

func newRecorder() audit.Recorder {
	return audit.NewFileRecorder(cfg.AuditLogFile)
}

// newEngine constructs the RBAC engine with default roles and loads the
// persisted assignment table.
func newEngine(recorder audit.Recorder) (*rbac.Engine, error) {
	engine := rbac.NewEngine(recorder)
	if err := engine.LoadState(cfg.RBACStateFile); err != nil {
		return nil, err
	}
	return engine, nil
}

func newWorkflow(engine *rbac.Engine, recorder audit.Recorder) (*approval.Workflow, error) {
	return approval.NewWorkflow(engine, recorder, cfg.ApprovalsFile)
}

// denyUnless gates a CLI command on a permission. A denied attempt is
// itself audit-worthy; failures to record it are only warned about.
func denyUnless(engine *rbac.Engine, recorder audit.Recorder, actorID, permission string) error {
	if engine.HasPermission(actorID, permission) {
		return nil
	}
	err := recorder.Record(audit.EventPermissionDenied, actorID, "",
		map[string]any{"permission": permission}, audit.StatusDenied)
	if err != nil {
		slog.Warn("failed to record audit event", "event", audit.EventPermissionDenied, "error", err)
	}
	return fmt.Errorf("permission denied: %s required", permission)
}
