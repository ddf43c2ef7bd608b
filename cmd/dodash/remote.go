package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dodash/internal/client"
	"github.com/mschirtzinger/dodash/internal/logging"
	"github.com/mschirtzinger/dodash/internal/schema"
)

func newMirror() *client.Mirror {
	policy, err := client.ParsePolicy(cfg.FailurePolicy)
	if err != nil {
		policy = client.PolicyRollback
	}
	return client.NewMirror(client.New(cfg.Server, nil), &client.MirrorConfig{
		Policy:      policy,
		Conditional: true,
		Logger:      logging.New("client"),
	})
}

// withMirror loads the document and runs fn against it. If the document
// changed on the server in between, it reloads and runs fn once more.
func withMirror(cmd *cobra.Command, fn func(ctx context.Context, m *client.Mirror) error) error {
	ctx := cmd.Context()
	m := newMirror()
	if err := m.Load(ctx); err != nil {
		return fmt.Errorf("failed to load document from %s: %w", cfg.Server, err)
	}

	err := fn(ctx, m)
	if errors.Is(err, client.ErrConflict) {
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		err = fn(ctx, m)
	}
	return err
}

// resolveList finds a list by id or case-insensitive name. An empty ref
// means the active list.
func resolveList(m *client.Mirror, ref string) (schema.List, error) {
	if ref == "" {
		l, ok := m.ActiveList()
		if !ok {
			return schema.List{}, client.ErrNoActiveList
		}
		return l, nil
	}

	doc := m.Snapshot()
	for _, l := range doc.Lists {
		if l.ID.String() == ref {
			return l, nil
		}
	}
	for _, l := range doc.Lists {
		if strings.EqualFold(l.Name, ref) {
			return l, nil
		}
	}
	return schema.List{}, fmt.Errorf("%w: %s", schema.ErrListNotFound, ref)
}

// resolveTask finds a task by its 1-based display position or by id.
func resolveTask(l schema.List, ref string) (schema.Task, error) {
	sorted := l.Sorted()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sorted) {
		return sorted[n-1], nil
	}
	for _, t := range sorted {
		if t.ID.String() == ref {
			return t, nil
		}
	}
	return schema.Task{}, fmt.Errorf("%w: %s in %s", schema.ErrTaskNotFound, ref, l.Name)
}

// listFlag registers --list on cmd.
func listFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("list", "l", "", "List id or name (default: first list)")
}

// taskTarget resolves the --list flag and a task reference.
func taskTarget(cmd *cobra.Command, m *client.Mirror, ref string) (schema.List, schema.Task, error) {
	listRef, _ := cmd.Flags().GetString("list")
	l, err := resolveList(m, listRef)
	if err != nil {
		return schema.List{}, schema.Task{}, err
	}
	t, err := resolveTask(l, ref)
	if err != nil {
		return schema.List{}, schema.Task{}, err
	}
	return l, t, nil
}
