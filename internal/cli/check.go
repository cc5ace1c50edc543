// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// check.go - Connection and setup diagnostics.
//
// Command: check
// Aliases: doctor
//
// Checks:
//   - Configuration is valid and has a server URL and API key
//   - The server accepts the API key
//   - At least one model is enabled, and default_model is one of them
//   - The offline cache opened and can be read
//
// Status Symbols:
//   [OK]    Pass  - Check successful
//   [WARN]  Warn  - Works, but something needs attention
//   [FAIL]  Fail  - Chat will not work until this is fixed
//
// Exits with a non-zero status when any check fails.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	// CheckPass indicates the check passed.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with a problem worth fixing.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	}
	return "unknown"
}

// Symbol returns the styled marker for the status.
func (s CheckStatus) Symbol() string {
	return RenderStatus(s.String())
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *CheckStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pass":
		*s = CheckPass
	case "warn":
		*s = CheckWarn
	case "fail":
		*s = CheckFail
	default:
		return fmt.Errorf("unknown check status %q", text)
	}
	return nil
}

// HealthCheck is the result of one check.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"` // suggested command or instruction

	err error
}

// Render formats the check for the terminal.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %-12s %s", c.Status.Symbol(), c.Name, c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n       " + RenderConditional(DimStyle, "-> "+c.Fix)
	}
	return result
}

func (c *HealthCheck) fail(err error, fix string) *HealthCheck {
	c.Status = CheckFail
	c.Message = err.Error()
	c.Fix = fix
	c.err = err
	return c
}

func (c *HealthCheck) warn(msg, fix string) *HealthCheck {
	c.Status = CheckWarn
	c.Message = msg
	c.Fix = fix
	return c
}

func (c *HealthCheck) pass(format string, args ...interface{}) *HealthCheck {
	c.Status = CheckPass
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// CheckSummary counts results by status.
type CheckSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// CheckData is the JSON form of the check command.
type CheckData struct {
	ServerURL string         `json:"server_url"`
	Checks    []*HealthCheck `json:"checks"`
	Summary   CheckSummary   `json:"summary"`
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleCheck runs every check and prints the results.
func HandleCheck(ctx context.Context, a *App, args Args) error {
	checks := runChecks(ctx, a)

	var sum CheckSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			sum.Passed++
		case CheckWarn:
			sum.Warned++
		case CheckFail:
			sum.Failed++
		}
	}
	sum.Healthy = sum.Failed == 0
	failure := checkFailure(checks, sum.Failed)

	if a.JSON {
		resp := NewJSONResponse("check", CheckData{
			ServerURL: a.Config().ServerURL,
			Checks:    checks,
			Summary:   sum,
		})
		if failure != nil {
			msg := failure.Error()
			resp.Success = false
			resp.Error = &msg
			resp.ErrorType = errorType(failure)
		}
		if err := resp.Print(a.Out); err != nil {
			return err
		}
		if failure != nil {
			return Reported(failure)
		}
		return nil
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("nanochat check"))
	fmt.Fprintln(a.Out, RenderSeparator(41))
	for _, c := range checks {
		fmt.Fprintln(a.Out, c.Render())
	}
	fmt.Fprintln(a.Out, RenderSeparator(41))

	parts := []string{fmt.Sprintf("%d passed", sum.Passed)}
	if sum.Warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", sum.Warned)))
	}
	if sum.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", sum.Failed)))
	}
	fmt.Fprintln(a.Out, strings.Join(parts, ", "))
	return failure
}

// checkFailure wraps the cause of the first failed check so the exit code
// matches what went wrong.
func checkFailure(checks []*HealthCheck, failed int) error {
	if failed == 0 {
		return nil
	}
	for _, c := range checks {
		if c.Status == CheckFail && c.err != nil {
			return fmt.Errorf("%d check(s) failed, first %s: %w", failed, c.Name, c.err)
		}
	}
	return fmt.Errorf("%d check(s) failed", failed)
}

// =============================================================================
// CHECKS
// =============================================================================

// runChecks runs the checks in order. Server checks are skipped when the
// configuration cannot reach a server.
func runChecks(ctx context.Context, a *App) []*HealthCheck {
	cfgCheck := checkConfig(a)
	checks := []*HealthCheck{cfgCheck}
	if cfgCheck.Status == CheckFail {
		checks = append(checks,
			&HealthCheck{Name: "connection", Status: CheckWarn, Message: "skipped"},
			&HealthCheck{Name: "models", Status: CheckWarn, Message: "skipped"},
		)
	} else {
		conn := checkConnection(ctx, a)
		checks = append(checks, conn)
		if conn.Status == CheckFail {
			checks = append(checks, &HealthCheck{Name: "models", Status: CheckWarn, Message: "skipped"})
		} else {
			checks = append(checks, checkModels(ctx, a))
		}
	}
	return append(checks, checkCache(ctx, a))
}

func checkConfig(a *App) *HealthCheck {
	check := &HealthCheck{Name: "config"}
	cfg := a.Config()
	if err := cfg.Validate(); err != nil {
		return check.fail(err, "nanochat config show")
	}
	if !cfg.IsConfigured() {
		return check.fail(ErrNotConfigured, "nanochat config set server_url URL && nanochat config set api_key KEY")
	}
	return check.pass("%s", a.ConfigPath)
}

func checkConnection(ctx context.Context, a *App) *HealthCheck {
	check := &HealthCheck{Name: "connection"}
	err := a.Client.ValidateConnection(ctx)
	switch {
	case err == nil:
		return check.pass("%s accepted the API key", a.Client.BaseURL())
	case api.IsUnauthorized(err):
		return check.fail(err, "create a new key in NanoChat settings, then: nanochat config set api_key KEY")
	case api.StatusCode(err) == 0:
		return check.fail(err, "check server_url and your network")
	default:
		return check.fail(err, "check that server_url points at a NanoChat server")
	}
}

func checkModels(ctx context.Context, a *App) *HealthCheck {
	check := &HealthCheck{Name: "models"}
	if err := a.Models.LoadModels(ctx); err != nil {
		return check.fail(err, "nanochat models -v")
	}
	models := a.Models.State().Models
	if len(models) == 0 {
		return check.fail(errors.New("no enabled models"), "enable a model in your NanoChat model settings")
	}
	if def := a.Config().DefaultModel; def != "" {
		if err := a.Models.SelectModel(def); err != nil {
			return check.warn(fmt.Sprintf("%d enabled, default %q is not one of them", len(models), def),
				"nanochat models, then: nanochat config set default_model ID")
		}
		return check.pass("%d enabled, default %s", len(models), def)
	}
	return check.pass("%d enabled", len(models))
}

// checkCache reports the offline cache. The cache is optional, so problems
// only warn.
func checkCache(ctx context.Context, a *App) *HealthCheck {
	check := &HealthCheck{Name: "cache"}
	backend := a.Config().Cache.Backend
	if a.CacheErr != nil {
		return check.warn(fmt.Sprintf("%s cache disabled: %v", backend, a.CacheErr),
			"nanochat config set cache.backend none")
	}
	if backend == "none" {
		return check.pass("disabled")
	}
	snap, err := a.Cache.LoadConversations(ctx)
	switch {
	case errors.Is(err, storage.ErrCacheMiss):
		return check.pass("%s, empty", backend)
	case err != nil:
		return check.warn(fmt.Sprintf("%s cache unreadable: %v", backend, err), "nanochat config set cache.backend none")
	}
	return check.pass("%s, %d conversations saved %s", backend, len(snap.Conversations), formatTime(snap.SavedAt))
}
