// Package compiler turns rules into native job units: a label, a schedule,
// an interpreter invocation and the script body it runs.
//
// Time-range rules produce two units sharing one weekday set. The -start
// unit runs the action; the -end unit runs its revert.
package compiler

import (
	"fmt"
	"path/filepath"

	"automata/internal/rule"
)

const (
	ShellPath     = "/bin/bash"
	OSAScriptPath = "/usr/bin/osascript"
)

// Role tells the two halves of a time-range rule apart.
type Role string

const (
	RolePrimary Role = "primary"
	RoleStart   Role = "start"
	RoleEnd     Role = "end"
)

// JobUnit is one schedulable job derived from a rule. It is never persisted;
// recompile the rule to get it back.
type JobUnit struct {
	Label      string
	Role       Role
	RuleID     string
	Program    []string
	ScriptPath string
	Script     rule.Script
	Schedule   rule.Schedule
	LogPath    string
}

// Interpreter is the program that runs a script of kind k.
func Interpreter(k rule.ScriptKind) string {
	if k == rule.ScriptAppleScript {
		return OSAScriptPath
	}
	return ShellPath
}

// Layout says where script artifacts and unit logs live.
type Layout struct {
	ScriptsDir string
	LogsDir    string
}

type Compiler struct {
	reg    *rule.Registry
	layout Layout
}

func New(reg *rule.Registry, layout Layout) *Compiler {
	if reg == nil {
		reg = rule.Default()
	}
	return &Compiler{reg: reg, layout: layout}
}

func (c *Compiler) Layout() Layout { return c.layout }

// Compile validates r and returns its units: one, or two for time-range.
func (c *Compiler) Compile(r *rule.Rule) ([]JobUnit, error) {
	if err := r.Validate(c.reg); err != nil {
		return nil, err
	}
	base := r.Label()
	tr, isRange := r.Trigger.(rule.TimeRange)
	if !isRange {
		return []JobUnit{c.unit(r, base, RolePrimary, r.Action.Script(r.Trigger), r.Trigger.Schedule())}, nil
	}
	rev, ok := r.Action.(rule.Reverter)
	if !ok {
		return nil, &rule.CompatibilityError{Trigger: rule.TriggerTimeRange, Action: r.Action.Kind()}
	}
	return []JobUnit{
		c.unit(r, base+"-start", RoleStart, r.Action.Script(tr), tr.Schedule()),
		c.unit(r, base+"-end", RoleEnd, rev.Revert(tr), tr.EndSchedule()),
	}, nil
}

// Labels returns the unit labels of r without generating scripts.
func (c *Compiler) Labels(r *rule.Rule) []string {
	base := r.Label()
	if r.Trigger.Kind() == rule.TriggerTimeRange {
		return []string{base + "-start", base + "-end"}
	}
	return []string{base}
}

// ScriptPaths lists every script path r could own, for either script kind.
// Used to clean up after a rule whose action changed kind.
func (c *Compiler) ScriptPaths(r *rule.Rule) []string {
	var out []string
	for _, l := range c.Labels(r) {
		out = append(out, c.ScriptPath(l, rule.ScriptShell), c.ScriptPath(l, rule.ScriptAppleScript))
	}
	return out
}

func (c *Compiler) ScriptPath(label string, k rule.ScriptKind) string {
	return filepath.Join(c.layout.ScriptsDir, fmt.Sprintf("%s.%s", label, k.Ext()))
}

func (c *Compiler) LogPath(label string) string {
	return filepath.Join(c.layout.LogsDir, label+".log")
}

func (c *Compiler) unit(r *rule.Rule, label string, role Role, s rule.Script, sched rule.Schedule) JobUnit {
	path := c.ScriptPath(label, s.Kind)
	return JobUnit{
		Label:      label,
		Role:       role,
		RuleID:     r.ID,
		Program:    []string{Interpreter(s.Kind), path},
		ScriptPath: path,
		Script:     s,
		Schedule:   sched,
		LogPath:    c.LogPath(label),
	}
}
