package dnode

import (
	"encoding/json"
	"fmt"

	"github.com/x2ee/c3/cache"
	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/logic"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

// serviceNames lists the four services a data-node config may configure,
// and the only keys a directory's defaults block may index by.
var serviceNames = []string{"compute", "state", "cache", "cron"}

// StoreFactory builds the state-store backend for a data node, given the
// node's path, its derived table schema, and the service config's
// remaining keys (backend selection, connection info) once "keys" has
// been consumed. Supplied by the wiring layer (ctx.NewStoreFactory) so that dnode
// itself stays free of any particular database driver dependency.
type StoreFactory func(path dpath.Path, table *types.Table, remaining map[string]any) (statestore.Store, error)

// Builders bundles the collaborators needed to turn parsed service config
// into live service instances.
type Builders struct {
	Logic    *logic.Registry
	Matrix   *types.Matrix
	NewStore StoreFactory
	Pool     Offloader
}

// Tree is the constructed data-node tree, indexed by exact path string.
type Tree struct {
	root     *DirNode
	allNodes map[string]Node
}

// NewTree parses raw (the value of the configuration document's top-level
// "dnodes" key) into a Tree, synthesising missing intermediate
// directories, then instantiates every data node's services with
// nearest-ancestor default inheritance (spec.md §4.5).
func NewTree(raw map[string]any, b Builders) (*Tree, error) {
	t := &Tree{allNodes: make(map[string]Node)}
	t.root = newDirNode(dpath.Root)
	t.allNodes[dpath.Root.String()] = t.root

	if err := t.parse(dpath.Root, raw); err != nil {
		return nil, err
	}

	for _, n := range t.allNodes {
		if dn, ok := n.(*DataNode); ok {
			if err := t.bindServices(dn, b); err != nil {
				return nil, fmt.Errorf("dnode: binding services for %q: %w", dn.Path().String(), err)
			}
		}
	}

	return t, nil
}

func (t *Tree) parse(cur dpath.Path, config map[string]any) error {
	for key, raw := range config {
		childPath, err := cur.Append(key)
		if err != nil {
			return fmt.Errorf("dnode: %w", err)
		}

		val, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("dnode: node %q config must be an object", childPath.String())
		}

		if _, hasCompute := val["compute"]; hasCompute {
			node := newDataNode(childPath)
			node.rawConfig = val
			t.addNode(node)
			continue
		}

		rest := make(map[string]any, len(val))
		for k, v := range val {
			rest[k] = v
		}
		children, _ := rest["children"].(map[string]any)
		delete(rest, "children")

		dir, ok := t.allNodes[childPath.String()].(*DirNode)
		if !ok {
			dir = newDirNode(childPath)
			t.addNode(dir)
		}
		if err := dir.setConfig(rest); err != nil {
			return fmt.Errorf("dnode: %q: %w", childPath.String(), err)
		}
		if children != nil {
			if err := t.parse(childPath, children); err != nil {
				return err
			}
		}
	}
	return nil
}

// addNode synthesises any missing ancestor directories and links n into
// its parent's children, mirroring the source's DNode.__init__ walk.
func (t *Tree) addNode(n Node) {
	path := n.Path()
	parents := path.Parents()
	for i := 1; i < len(parents); i++ {
		if _, exists := t.allNodes[parents[i].String()]; !exists {
			dir := newDirNode(parents[i])
			t.allNodes[parents[i].String()] = dir
			parent := t.allNodes[parents[i-1].String()].(*DirNode)
			parent.add(dir)
		}
	}
	t.allNodes[path.String()] = n
	if len(parents) > 0 {
		immediateParent := t.allNodes[parents[len(parents)-1].String()].(*DirNode)
		immediateParent.add(n)
	}
}

// Get performs an exact-path lookup.
func (t *Tree) Get(path dpath.Path) (Node, bool) {
	n, ok := t.allNodes[path.String()]
	return n, ok
}

// DataNodes returns every data node in the tree, in no particular order.
// Used by the wiring layer to bootstrap per-node periodic/cron hooks
// (e.g. the built-in clean_cache maintenance task) without re-walking the
// raw configuration.
func (t *Tree) DataNodes() []*DataNode {
	out := make([]*DataNode, 0, len(t.allNodes))
	for _, n := range t.allNodes {
		if dn, ok := n.(*DataNode); ok {
			out = append(out, dn)
		}
	}
	return out
}

func (d *DirNode) setConfig(config map[string]any) error {
	rest := make(map[string]any, len(config))
	for k, v := range config {
		rest[k] = v
	}

	if rawDefaults, ok := rest["defaults"]; ok {
		delete(rest, "defaults")
		if rawDefaults != nil {
			defaultsMap, ok := rawDefaults.(map[string]any)
			if !ok {
				return fmt.Errorf("defaults must be an object")
			}
			defaults := make(map[string]map[string]any, len(defaultsMap))
			for svc, raw := range defaultsMap {
				svcConfig, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("defaults.%s must be an object", svc)
				}
				defaults[svc] = svcConfig
			}
			if err := validateDataNodeConfig(defaults); err != nil {
				return err
			}
			d.defaults = defaults
		}
	}

	if len(rest) > 0 {
		return fmt.Errorf("Unexpected entries %s", logic.FormatUnexpectedEntries(rest))
	}
	return nil
}

// validateDataNodeConfig rejects any key outside the four known services,
// matching the source's _validate_data_node_config.
func validateDataNodeConfig(config map[string]any) error {
	rest := make(map[string]any, len(config))
	for k, v := range config {
		rest[k] = v
	}
	for _, name := range serviceNames {
		delete(rest, name)
	}
	if len(rest) > 0 {
		return fmt.Errorf("Unrecognized properties in data node config %s", logic.FormatUnexpectedEntries(rest))
	}
	return nil
}

// resolveServiceConfig implements spec.md §9's hierarchical-defaults rule:
// scanning root-outward is wrong — scanning *nearest ancestor outward* and
// stopping at the first ancestor carrying any (non-empty) defaults block,
// regardless of whether that block names this particular service. The
// node's own top-level config is then layered on top, always.
//
// The result is (nil, false) both when the service is explicitly
// disabled (the config carries the key with a JSON null value) and when
// nothing configures it (the merged config is empty); the caller treats
// both as absent.
func (t *Tree) resolveServiceConfig(path dpath.Path, serviceName string, topConfig any, topPresent bool) (map[string]any, bool) {
	if topPresent && topConfig == nil {
		return nil, false
	}

	merged := make(map[string]any)

	parents := path.Parents()
	for i := len(parents) - 1; i >= 0; i-- {
		dir, ok := t.allNodes[parents[i].String()].(*DirNode)
		if !ok || len(dir.defaults) == 0 {
			continue
		}
		if svcDefaults, ok := dir.defaults[serviceName]; ok {
			for k, v := range svcDefaults {
				merged[k] = v
			}
		}
		break
	}

	if top, ok := topConfig.(map[string]any); ok {
		for k, v := range top {
			merged[k] = v
		}
	}

	if len(merged) == 0 {
		return nil, false
	}
	return merged, true
}

func (t *Tree) bindServices(n *DataNode, b Builders) error {
	computeRaw, computePresent := n.rawConfig["compute"]
	computeConfig, ok := t.resolveServiceConfig(n.path, "compute", computeRaw, computePresent)
	if !ok {
		return fmt.Errorf("data node %q requires a compute service", n.path.String())
	}
	compute, err := buildCompute(computeConfig, b)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	n.Compute = compute

	stateRaw, statePresent := n.rawConfig["state"]
	stateConfig, ok := t.resolveServiceConfig(n.path, "state", stateRaw, statePresent)
	if ok {
		table, err := buildTable(n.path, compute.Args(), stateConfig)
		if err != nil {
			return fmt.Errorf("state: %w", err)
		}
		delete(stateConfig, "keys")
		store, err := b.NewStore(n.path, table, stateConfig)
		if err != nil {
			return fmt.Errorf("state: %w", err)
		}
		n.State = store
	}

	cacheRaw, cachePresent := n.rawConfig["cache"]
	cacheConfig, ok := t.resolveServiceConfig(n.path, "cache", cacheRaw, cachePresent)
	if ok {
		if n.State == nil {
			return fmt.Errorf("cache requires a state service")
		}
		policy, err := buildCache(cacheConfig, n.State, n.Compute.CalculateFunc(), b.Matrix)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		n.Cache = policy
	}

	cronRaw, cronPresent := n.rawConfig["cron"]
	cronConfig, ok := t.resolveServiceConfig(n.path, "cron", cronRaw, cronPresent)
	if ok {
		cron, err := buildCron(n.path, cronConfig, b)
		if err != nil {
			return fmt.Errorf("cron: %w", err)
		}
		n.Cron = cron
	}

	return nil
}

func buildCompute(config map[string]any, b Builders) (*Compute, error) {
	rest := make(map[string]any, len(config))
	for k, v := range config {
		rest[k] = v
	}

	rawArgs, _ := rest["args"].([]any)
	delete(rest, "args")
	rawLogic, _ := rest["logic"].(map[string]any)
	delete(rest, "logic")
	delete(rest, "runner_table")

	if len(rest) > 0 {
		return nil, fmt.Errorf("Unexpected entries %s", logic.FormatUnexpectedEntries(rest))
	}

	args := make([]types.ArgField, 0, len(rawArgs))
	for _, raw := range rawArgs {
		f, err := decodeArgField(raw)
		if err != nil {
			return nil, err
		}
		args = append(args, f)
	}

	handler, err := b.Logic.Resolve(rawLogic, "")
	if err != nil {
		return nil, err
	}

	return &Compute{args: args, call: handler.Call, isAsync: handler.Kind == logic.Async, pool: b.Pool}, nil
}

func buildTable(path dpath.Path, computeArgs []types.ArgField, stateConfig map[string]any) (*types.Table, error) {
	fields := append([]types.ArgField(nil), computeArgs...)

	if rawKeys, ok := stateConfig["keys"]; ok {
		keyNames := make(map[string]bool)
		rawList, _ := rawKeys.([]any)
		for _, k := range rawList {
			name, _ := k.(string)
			keyNames[name] = true
		}
		for i := range fields {
			fields[i].IsKey = keyNames[fields[i].Name]
		}
	}

	return types.NewTable(path.Table(), fields)
}

func buildCache(config map[string]any, store statestore.Store, compute cache.ComputeFunc, matrix *types.Matrix) (*cache.Policy, error) {
	rest := make(map[string]any, len(config))
	for k, v := range config {
		rest[k] = v
	}

	rawExpire, _ := rest["expire"].(string)
	delete(rest, "expire")
	rawOnExpire, _ := rest["on_expire"].(string)
	delete(rest, "on_expire")

	if len(rest) > 0 {
		return nil, fmt.Errorf("Unexpected entries %s", logic.FormatUnexpectedEntries(rest))
	}

	expire, err := interval.Parse(rawExpire)
	if err != nil {
		return nil, err
	}

	onExpire := cache.Keep
	if rawOnExpire == string(cache.Purge) {
		onExpire = cache.Purge
	}

	return cache.NewPolicy(store, compute, expire, onExpire, matrix), nil
}

func buildCron(path dpath.Path, config map[string]any, b Builders) (*Cron, error) {
	rest := make(map[string]any, len(config))
	for k, v := range config {
		rest[k] = v
	}

	rawTasks, _ := rest["tasks"].([]any)
	delete(rest, "tasks")
	runnerTable, _ := rest["runner_table"].(string)
	delete(rest, "runner_table")

	if len(rest) > 0 {
		return nil, fmt.Errorf("Unrecognized properties in cron config %s", logic.FormatUnexpectedEntries(rest))
	}

	tasks := make([]*CronTask, 0, len(rawTasks))
	for _, raw := range rawTasks {
		taskConfig, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cron task config must be an object")
		}
		task, err := buildCronTask(path, taskConfig, b)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return &Cron{Tasks: tasks, RunnerTable: runnerTable}, nil
}

func buildCronTask(path dpath.Path, config map[string]any, b Builders) (*CronTask, error) {
	rest := make(map[string]any, len(config))
	for k, v := range config {
		rest[k] = v
	}

	name, _ := rest["name"].(string)
	delete(rest, "name")
	schedule, _ := rest["schedule"].(string)
	delete(rest, "schedule")
	rawLogic, _ := rest["logic"].(map[string]any)
	delete(rest, "logic")

	if len(rest) > 0 {
		return nil, fmt.Errorf("Unrecognized properties in `CronTask` config %s", logic.FormatUnexpectedEntries(rest))
	}

	handler, err := b.Logic.Resolve(rawLogic, "")
	if err != nil {
		return nil, err
	}

	return &CronTask{
		Name:     name,
		Schedule: schedule,
		call:     handler.Call,
		isAsync:  handler.Kind == logic.Async,
		pool:     b.Pool,
		nodePath: path,
	}, nil
}

func decodeArgField(raw any) (types.ArgField, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return types.ArgField{}, err
	}
	var f types.ArgField
	if err := json.Unmarshal(data, &f); err != nil {
		return types.ArgField{}, fmt.Errorf("decoding argument field: %w", err)
	}
	return f, nil
}
