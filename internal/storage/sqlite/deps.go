package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/telemetry"
	"github.com/gobby-dev/gobby/internal/types"
)

// maxCycleDepth bounds the recursive reachability check. Real dependency
// chains are shallow; hitting the bound is reported as an integrity error
// rather than silently treating deeper nodes as unreachable.
const maxCycleDepth = 100

// AddDependency inserts a dependency edge. For blocking edges it first
// verifies the edge would not close a cycle: if the dependent is already
// reachable from the target over blocks edges, the insert is rejected and
// no edge is written.
func (s *SQLiteStore) AddDependency(ctx context.Context, dep *types.Dependency) (*types.Dependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := *dep
	if d.Type == "" {
		d.Type = types.DepBlocks
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	d.CreatedAt = now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add dependency: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{d.TaskID, d.DependsOn} {
		exists, err := taskExists(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
		}
	}

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM task_dependencies WHERE task_id = ? AND depends_on = ? AND dep_type = ?`,
		d.TaskID, d.DependsOn, d.Type).Scan(&one)
	if err == nil {
		return nil, fmt.Errorf("%w: dependency %s -> %s (%s) already exists",
			storage.ErrConflict, d.TaskID, d.DependsOn, d.Type)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check duplicate edge: %w", err)
	}

	if d.Type == types.DepBlocks {
		// Walk blocks edges outward from the target. Reaching the dependent
		// means the new edge would complete a cycle. The walk also reports
		// its deepest frontier: a walk cut off at the depth bound cannot
		// prove the edge safe, so that case is rejected instead of silently
		// admitting a possible cycle.
		var deepest, reachable int
		err = tx.QueryRowContext(ctx, `
			WITH RECURSIVE reach(id, depth) AS (
				SELECT depends_on, 1 FROM task_dependencies
				WHERE task_id = ? AND dep_type = 'blocks'
				UNION
				SELECT d.depends_on, r.depth + 1
				FROM task_dependencies d
				JOIN reach r ON d.task_id = r.id
				WHERE d.dep_type = 'blocks' AND r.depth < ?
			)
			SELECT COALESCE(MAX(depth), 0), COALESCE(SUM(id = ?), 0) FROM reach`,
			d.DependsOn, maxCycleDepth, d.TaskID).Scan(&deepest, &reachable)
		if err != nil {
			return nil, fmt.Errorf("cycle check: %w", err)
		}
		if reachable > 0 {
			return nil, fmt.Errorf("%w: %s -> %s would create a blocking cycle",
				storage.ErrCycle, d.TaskID, d.DependsOn)
		}
		if deepest >= maxCycleDepth {
			return nil, fmt.Errorf("%w: blocking chain behind %s exceeds %d levels, cycle check cannot complete",
				storage.ErrIntegrity, d.DependsOn, maxCycleDepth)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO task_dependencies (task_id, depends_on, dep_type, created_at) VALUES (?, ?, ?, ?)`,
		d.TaskID, d.DependsOn, d.Type, d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert dependency: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add dependency: %w", err)
	}

	telemetry.CountDependencyMutation(ctx, "add")
	s.notifyChange()
	return &d, nil
}

// RemoveDependency deletes the matching edge. An empty depType matches any
// edge kind between the pair. Returns the number of edges removed.
func (s *SQLiteStore) RemoveDependency(ctx context.Context, taskID, dependsOn string, depType types.DepType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res interface{ RowsAffected() (int64, error) }
	var err error
	if depType == "" {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM task_dependencies WHERE task_id = ? AND depends_on = ?`,
			taskID, dependsOn)
	} else {
		if !depType.IsValid() {
			return 0, fmt.Errorf("%w: invalid dependency type: %s", storage.ErrValidation, depType)
		}
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM task_dependencies WHERE task_id = ? AND depends_on = ? AND dep_type = ?`,
			taskID, dependsOn, depType)
	}
	if err != nil {
		return 0, fmt.Errorf("remove dependency %s -> %s: %w", taskID, dependsOn, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		telemetry.CountDependencyMutation(ctx, "remove")
		s.notifyChange()
	}
	return int(n), nil
}

// GetBlockers returns the tasks that id directly depends on via blocks
// edges, whatever their status.
func (s *SQLiteStore) GetBlockers(ctx context.Context, id string) ([]*types.Task, error) {
	if err := s.requireTask(ctx, id); err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE id IN (
			SELECT depends_on FROM task_dependencies
			WHERE task_id = ? AND dep_type = 'blocks'
		)
		ORDER BY priority ASC, created_at ASC`, id)
}

// GetBlocking returns the tasks directly blocked by id.
func (s *SQLiteStore) GetBlocking(ctx context.Context, id string) ([]*types.Task, error) {
	if err := s.requireTask(ctx, id); err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE id IN (
			SELECT task_id FROM task_dependencies
			WHERE depends_on = ? AND dep_type = 'blocks'
		)
		ORDER BY priority ASC, created_at ASC`, id)
}

func (s *SQLiteStore) requireTask(ctx context.Context, id string) error {
	exists, err := taskExists(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// edge is an adjacency entry used by the in-memory traversals.
type edge struct {
	taskID    string
	dependsOn string
	depType   types.DepType
}

func (s *SQLiteStore) loadEdges(ctx context.Context) ([]edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, depends_on, dep_type FROM task_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.taskID, &e.dependsOn, &e.depType); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetDependencyTree walks the dependency graph from id, following every
// edge kind. Direction blockers walks toward dependencies, blocking toward
// dependents, both merges the two walks (the root appears once). A visited
// set makes the walk terminate even if association edges form cycles;
// maxDepth <= 0 means unlimited, and nodes whose children were cut off by
// the depth limit are marked Truncated.
func (s *SQLiteStore) GetDependencyTree(ctx context.Context, id string, direction types.TreeDirection, maxDepth int) ([]*types.TreeNode, error) {
	if !direction.IsValid() {
		return nil, fmt.Errorf("%w: invalid tree direction: %s", storage.ErrValidation, direction)
	}
	if err := s.requireTask(ctx, id); err != nil {
		return nil, err
	}

	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string][]string{} // task -> its dependencies
	in := map[string][]string{}  // task -> its dependents
	for _, e := range edges {
		out[e.taskID] = append(out[e.taskID], e.dependsOn)
		in[e.dependsOn] = append(in[e.dependsOn], e.taskID)
	}
	for _, adj := range []map[string][]string{out, in} {
		for _, next := range adj {
			sort.Strings(next)
		}
	}

	var nodes []*types.TreeNode
	visited := map[string]bool{}

	var walk func(cur, parent string, depth int, adj map[string][]string)
	walk = func(cur, parent string, depth int, adj map[string][]string) {
		if visited[cur] {
			return
		}
		visited[cur] = true
		node := &types.TreeNode{Depth: depth, ParentID: parent}
		node.ID = cur // task fields filled in below
		next := adj[cur]
		if maxDepth > 0 && depth >= maxDepth && len(next) > 0 {
			node.Truncated = true
			nodes = append(nodes, node)
			return
		}
		nodes = append(nodes, node)
		for _, n := range next {
			walk(n, cur, depth+1, adj)
		}
	}

	switch direction {
	case types.TreeBlockers:
		walk(id, "", 0, out)
	case types.TreeBlocking:
		walk(id, "", 0, in)
	case types.TreeBoth:
		walk(id, "", 0, out)
		delete(visited, id) // allow the root's dependents walk to start
		seen := len(nodes)
		walk(id, "", 0, in)
		if len(nodes) > seen {
			nodes = append(nodes[:seen], nodes[seen+1:]...) // drop duplicate root
		}
	}

	// Hydrate the node tasks with one batched fetch.
	tasks := make([]*types.Task, len(nodes))
	for i, n := range nodes {
		tasks[i] = &types.Task{ID: n.ID}
	}
	if err := s.hydrateTasks(ctx, tasks); err != nil {
		return nil, err
	}
	for i, n := range nodes {
		depth, parent, truncated := n.Depth, n.ParentID, n.Truncated
		nodes[i] = &types.TreeNode{Task: *tasks[i], Depth: depth, ParentID: parent, Truncated: truncated}
	}
	return nodes, nil
}

// hydrateTasks fills in each placeholder task (ID set, rest empty) from the
// database, preserving order.
func (s *SQLiteStore) hydrateTasks(ctx context.Context, tasks []*types.Task) error {
	for _, t := range tasks {
		full, err := getTask(ctx, s.db, t.ID)
		if err != nil {
			return err
		}
		*t = *full
	}
	return attachLabels(ctx, s.db, tasks)
}

// CheckCycles scans the whole blocks subgraph for cycles with an iterative
// three-color depth-first search. It returns each distinct cycle as an
// ordered id list starting at the lexicographically smallest member. A
// healthy store returns nothing; cycles can only enter via import, which
// bypasses the incremental insert guard.
func (s *SQLiteStore) CheckCycles(ctx context.Context) ([][]string, error) {
	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}

	adj := map[string][]string{}
	var ids []string
	seen := map[string]bool{}
	for _, e := range edges {
		if e.depType != types.DepBlocks {
			continue
		}
		adj[e.taskID] = append(adj[e.taskID], e.dependsOn)
		for _, id := range []string{e.taskID, e.dependsOn} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	for _, next := range adj {
		sort.Strings(next)
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := map[string]int{}
	var cycles [][]string
	reported := map[string]bool{}

	var path []string
	onPath := map[string]int{} // id -> index in path

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		onPath[id] = len(path)
		path = append(path, id)

		for _, next := range adj[id] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				cycle := append([]string{}, path[onPath[next]:]...)
				key := normalizeCycle(cycle)
				if !reported[key] {
					reported[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		path = path[:len(path)-1]
		delete(onPath, id)
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles, nil
}

// normalizeCycle rotates the cycle to start at its smallest member and
// returns a canonical key, so the same loop found from different entry
// points is reported once. The rotation mutates the slice in place.
func normalizeCycle(cycle []string) string {
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	rotated := append(append([]string{}, cycle[min:]...), cycle[:min]...)
	copy(cycle, rotated)
	key := ""
	for _, id := range cycle {
		key += id + "\x00"
	}
	return key
}

// ListDependencies returns every edge in the store, ordered for stable
// export.
func (s *SQLiteStore) ListDependencies(ctx context.Context) ([]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, depends_on, dep_type, created_at
		FROM task_dependencies
		ORDER BY task_id, depends_on, dep_type`)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*types.Dependency
	for rows.Next() {
		var d types.Dependency
		if err := rows.Scan(&d.TaskID, &d.DependsOn, &d.Type, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		deps = append(deps, &d)
	}
	return deps, rows.Err()
}
