// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package steering applies operator-defined routing overrides. Rules live as
// YAML files in a directory, carry an expression condition over the report
// context, and are hot-reloaded when the directory changes. A matching rule
// forces a report to a specific department regardless of the engine's own
// ranking.
package steering

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Rule is one operator override. Condition is an expr expression evaluated
// against Context; an empty condition always matches.
type Rule struct {
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Condition  string `yaml:"condition"`
	Priority   int    `yaml:"priority"`
	Reason     string `yaml:"reason,omitempty"`

	FilePath string `yaml:"-"`
}

// Context is the expression environment a rule condition sees.
type Context struct {
	Category string `expr:"category"`
	Urgency  string `expr:"urgency"`
	Location string `expr:"location"`
	Intent   string `expr:"intent"`
	Hour     int    `expr:"hour"`
}

// Engine loads and matches steering rules.
type Engine struct {
	dir   string
	mu    sync.RWMutex
	rules []*Rule

	progMu   sync.Mutex
	programs map[string]*vm.Program

	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
}

// NewEngine creates a steering engine over the given rules directory. An
// empty dir disables steering: Match never fires and LoadRules is a no-op.
func NewEngine(dir string) *Engine {
	return &Engine{
		dir:         dir,
		programs:    make(map[string]*vm.Program),
		stopWatcher: make(chan struct{}),
	}
}

// LoadRules reads every YAML rule file under the directory and replaces the
// active rule set. Unparseable files are skipped with a log line, never
// fatal.
func (e *Engine) LoadRules() error {
	if e.dir == "" {
		return nil
	}
	if _, err := os.Stat(e.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(e.dir, 0755); err != nil {
			return fmt.Errorf("steering: create rules directory: %w", err)
		}
	}

	var loaded []*Rule
	err := filepath.Walk(e.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			log.Warnf("Skipping symlink in steering directory: %s", path)
			return nil
		}
		if info.IsDir() || (!strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml")) {
			return nil
		}
		if info.Size() > 1*1024*1024 {
			log.Warnf("Skipping oversized steering file: %s (%d bytes)", path, info.Size())
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Errorf("Failed to read steering file %s: %v", path, err)
			return nil
		}
		var rule Rule
		if err := yaml.Unmarshal(data, &rule); err != nil {
			log.Errorf("Failed to parse steering rule %s: %v", path, err)
			return nil
		}
		if rule.Department == "" {
			log.Warnf("Steering rule %s has no target department, skipping", path)
			return nil
		}
		rule.FilePath = path
		loaded = append(loaded, &rule)
		log.Debugf("Loaded steering rule: %s from %s", rule.Name, path)
		return nil
	})
	if err != nil {
		return err
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Priority > loaded[j].Priority
	})

	e.mu.Lock()
	e.rules = loaded
	e.mu.Unlock()
	log.Infof("Loaded %d steering rules", len(loaded))
	return nil
}

// Rules returns a copy of the active rule set, highest priority first.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = *r
	}
	return out
}

// Match returns the highest-priority rule whose condition holds for the
// context. Evaluation errors disable the offending rule for this call only.
func (e *Engine) Match(ctx Context) (Rule, bool) {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	for _, rule := range rules {
		ok, err := e.evaluate(rule.Condition, ctx)
		if err != nil {
			log.Warnf("Failed to evaluate steering rule %s: %v", rule.Name, err)
			continue
		}
		if ok {
			return *rule, true
		}
	}
	return Rule{}, false
}

func (e *Engine) evaluate(condition string, ctx Context) (bool, error) {
	if condition == "" || condition == "true" {
		return true, nil
	}

	e.progMu.Lock()
	program, exists := e.programs[condition]
	if !exists {
		var err error
		program, err = expr.Compile(condition, expr.Env(ctx), expr.AsBool())
		if err != nil {
			e.progMu.Unlock()
			return false, fmt.Errorf("compile condition %q: %w", condition, err)
		}
		e.programs[condition] = program
	}
	e.progMu.Unlock()

	output, err := expr.Run(program, ctx)
	if err != nil {
		return false, fmt.Errorf("run condition %q: %w", condition, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return a boolean", condition)
	}
	return result, nil
}

// StartWatcher hot-reloads rules when the directory changes.
func (e *Engine) StartWatcher() error {
	if e.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	e.watcher = watcher

	err = filepath.Walk(e.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Infof("Steering directory changed (%s), reloading rules", event.Name)
					time.Sleep(100 * time.Millisecond)
					if err := e.LoadRules(); err != nil {
						log.Errorf("Failed to reload steering rules: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Steering watcher error: %v", err)
			case <-e.stopWatcher:
				return
			}
		}
	}()
	return nil
}

// StopWatcher stops the file watcher.
func (e *Engine) StopWatcher() {
	if e.watcher != nil {
		select {
		case <-e.stopWatcher:
		default:
			close(e.stopWatcher)
		}
		e.watcher.Close()
		e.watcher = nil
	}
}
