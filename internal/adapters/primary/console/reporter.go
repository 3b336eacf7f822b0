package console

import (
	"fmt"
	"io"
	"strings"

	"model-stage-promoter/internal/core/domain"
	output "model-stage-promoter/internal/core/ports/output"
)

var rule = strings.Repeat("=", 60)

// Reporter prints promotion progress as plain text lines.
type Reporter struct {
	w     io.Writer
	uiURL string
}

// NewReporter creates a reporter writing to w. uiURL is printed in the manual
// remediation steps.
func NewReporter(w io.Writer, uiURL string) *Reporter {
	return &Reporter{w: w, uiURL: uiURL}
}

var _ output.Reporter = (*Reporter)(nil)

func (r *Reporter) Start(modelName string) {
	r.printf("Fixing model stages for: %s\n", modelName)
	r.printf("%s\n", rule)
}

func (r *Reporter) LatestVersion(version int) {
	r.printf("Latest version: %d\n", version)
}

func (r *Reporter) Transitioning(stage domain.Stage) {
	r.printf("Transitioning to %s...\n", stage)
}

func (r *Reporter) Transitioned(modelName string, version int, stage domain.Stage) {
	r.printf("[OK] Successfully transitioned %s v%d to %s!\n", modelName, version, stage)
}

func (r *Reporter) TransitionFailed(err error) {
	r.printf("Transition threw error (may still have worked): %v\n", err)
}

func (r *Reporter) Verified(stage domain.Stage, version int) {
	r.printf("[OK] Verified: Model is in %s stage (version %d)\n", stage, version)
}

func (r *Reporter) NotInStage(modelName string, stage domain.Stage) {
	r.printf("[ERROR] Model is NOT in %s stage\n", stage)
	r.printf("\nTry using MLflow UI:\n")
	r.printf("1. Run: mlflow ui\n")
	r.printf("2. Go to %s\n", r.uiURL)
	r.printf("3. Click 'Models' tab\n")
	r.printf("4. Click on '%s'\n", modelName)
	r.printf("5. Click 'Stage' dropdown and select 'Transition to -> %s'\n", stage)
}

func (r *Reporter) Done() {
	r.printf("\n%s\n", rule)
	r.printf("Done! Now you can run Section 10 of the notebook.\n")
}

// Console output is best effort.
func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}
