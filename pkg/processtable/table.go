package processtable

import (
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/logging"
	"github.com/core-tools/procsim/pkg/process"
)

// node is one arena slot: the process plus its structural links.
type node struct {
	proc     *process.Process
	parent   process.ID // process.NoID for the root
	children []process.ID
}

// Table owns every simulated process as a single rooted tree. Parent and
// child links are ids into the arena, never pointers between processes.
//
// Invariants: an id appears at most once, every non-root node has exactly one
// parent, and a pre-order walk from the root visits every node once.
type Table struct {
	nodes   map[process.ID]*node
	root    process.ID
	nextID  process.ID
	source  process.RegisterSource
	logger  logging.Logger
	rwMutex sync.RWMutex
}

func New(source process.RegisterSource, logger logging.Logger) *Table {
	return &Table{
		nodes:  make(map[process.ID]*node),
		root:   process.NoID,
		nextID: 1,
		source: source,
		logger: logger,
	}
}

// CreateRoot creates the root process. A table has at most one root.
func (t *Table) CreateRoot(name string, priority process.Priority) (process.ID, error) {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	if t.root != process.NoID {
		return process.NoID, errors.NewConflictError("process table already has a root", nil).
			WithContext("root_pid", int(t.root))
	}

	if err := validateEntry(name, priority); err != nil {
		return process.NoID, err
	}

	id := t.allocateID()
	proc, err := process.New(id, name, priority, t.source)
	if err != nil {
		return process.NoID, err
	}

	t.nodes[id] = &node{proc: proc, parent: process.NoID}
	t.root = id

	t.logger.Infof("Root process created, pid: %d, name: %s, priority: %s", id, name, priority)
	return id, nil
}

// Fork creates a child of parentID that inherits the parent's status and is
// appended after its existing siblings. childID is caller supplied;
// process.NoID lets the table allocate one.
func (t *Table) Fork(parentID process.ID, name string, priority process.Priority, childID process.ID) (process.ID, error) {
	if err := process.ValidateID(childID); err != nil {
		return process.NoID, err
	}
	if err := validateEntry(name, priority); err != nil {
		return process.NoID, err
	}

	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	parent, exists := t.nodes[parentID]
	if !exists {
		return process.NoID, errors.NewNotFoundError("parent process not found", nil).
			WithContext("parent_pid", int(parentID))
	}

	if childID == process.NoID {
		childID = t.allocateID()
	} else if _, taken := t.nodes[childID]; taken {
		return process.NoID, errors.NewConflictError(
			fmt.Sprintf("process id %d already in use", childID),
			nil,
		).WithContext("parent_pid", int(parentID))
	}

	child, err := parent.proc.Fork(childID, name, priority, t.source)
	if err != nil {
		return process.NoID, err
	}

	t.nodes[childID] = &node{proc: child, parent: parentID}
	parent.children = append(parent.children, childID)

	t.logger.Infof("Process forked, pid: %d, parent_pid: %d, name: %s, priority: %s, status: %s",
		childID, parentID, name, priority, child.Status())
	return childID, nil
}

// Find returns the process with the given id
func (t *Table) Find(id process.ID) (*process.Process, bool) {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()

	n, exists := t.nodes[id]
	if !exists {
		return nil, false
	}
	return n.proc, true
}

// Get is Find reporting absence as a not-found error
func (t *Table) Get(id process.ID) (*process.Process, error) {
	proc, exists := t.Find(id)
	if !exists {
		return nil, errors.NewNotFoundError("process not found", nil).WithContext("pid", int(id))
	}
	return proc, nil
}

// MarkReady asks a stopped process to run at its next selection.
// A process in any other state is left alone.
func (t *Table) MarkReady(id process.ID) error {
	proc, err := t.Get(id)
	if err != nil {
		return err
	}
	if !proc.MarkReady() {
		t.logger.Debugf("Mark ready ignored, pid: %d, status: %s", id, proc.Status())
	}
	return nil
}

// RegenerateRegisters refills the register snapshot of one process from the
// table's register source.
func (t *Table) RegenerateRegisters(id process.ID) error {
	proc, err := t.Get(id)
	if err != nil {
		return err
	}
	proc.RegenerateRegisters(t.source)
	return nil
}

// Delete removes exactly one process. Its children take its place under its
// parent in the same order, so the pre-order listing is unchanged apart from
// the removed entry. Removing the root promotes its first child to root and
// moves the remaining children under it, after its own. Unknown ids are ignored.
func (t *Table) Delete(id process.ID) bool {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	target, exists := t.nodes[id]
	if !exists {
		t.logger.Debugf("Delete ignored, process not found, pid: %d", id)
		return false
	}

	if id == t.root {
		t.promoteRootChild(target)
	} else {
		parent := t.nodes[target.parent]
		index := slices.Index(parent.children, id)
		parent.children = slices.Replace(parent.children, index, index+1, target.children...)
		for _, childID := range target.children {
			t.nodes[childID].parent = target.parent
		}
	}

	delete(t.nodes, id)

	t.logger.Infof("Process deleted, pid: %d, promoted_children: %d", id, len(target.children))
	return true
}

func (t *Table) promoteRootChild(oldRoot *node) {
	if len(oldRoot.children) == 0 {
		t.root = process.NoID
		return
	}

	newRootID := oldRoot.children[0]
	newRoot := t.nodes[newRootID]
	newRoot.parent = process.NoID
	for _, childID := range oldRoot.children[1:] {
		t.nodes[childID].parent = newRootID
		newRoot.children = append(newRoot.children, childID)
	}
	t.root = newRootID
}

// DeleteCascading removes a process together with its whole subtree and
// returns how many processes were removed. Unknown ids are ignored.
func (t *Table) DeleteCascading(id process.ID) int {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	target, exists := t.nodes[id]
	if !exists {
		t.logger.Debugf("Cascading delete ignored, process not found, pid: %d", id)
		return 0
	}

	if id == t.root {
		t.root = process.NoID
	} else {
		parent := t.nodes[target.parent]
		parent.children = slices.DeleteFunc(parent.children, func(childID process.ID) bool {
			return childID == id
		})
	}

	removed := 0
	for _, subtreeID := range t.preOrder(id) {
		delete(t.nodes, subtreeID)
		removed++
	}

	t.logger.Infof("Process subtree deleted, pid: %d, removed: %d", id, removed)
	return removed
}

// Traverse lists every live process in pre-order: parent before children,
// siblings in fork order. The order is fixed when iteration starts; ranging
// over the sequence again walks the table afresh.
func (t *Table) Traverse() iter.Seq[*process.Process] {
	return func(yield func(*process.Process) bool) {
		t.rwMutex.RLock()
		ids := t.preOrder(t.root)
		procs := make([]*process.Process, 0, len(ids))
		for _, id := range ids {
			procs = append(procs, t.nodes[id].proc)
		}
		t.rwMutex.RUnlock()

		for _, proc := range procs {
			if !yield(proc) {
				return
			}
		}
	}
}

func (t *Table) Len() int {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()
	return len(t.nodes)
}

func (t *Table) Root() (process.ID, bool) {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()
	return t.root, t.root != process.NoID
}

// Parent returns the parent id; false for the root and unknown ids
func (t *Table) Parent(id process.ID) (process.ID, bool) {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()

	n, exists := t.nodes[id]
	if !exists || n.parent == process.NoID {
		return process.NoID, false
	}
	return n.parent, true
}

// Children returns a copy of the direct children in fork order
func (t *Table) Children(id process.ID) []process.ID {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()

	n, exists := t.nodes[id]
	if !exists {
		return nil
	}
	return slices.Clone(n.children)
}

// NextSibling returns the sibling forked right after id, if any
func (t *Table) NextSibling(id process.ID) (process.ID, bool) {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()

	n, exists := t.nodes[id]
	if !exists || n.parent == process.NoID {
		return process.NoID, false
	}
	siblings := t.nodes[n.parent].children
	index := slices.Index(siblings, id)
	if index < 0 || index+1 >= len(siblings) {
		return process.NoID, false
	}
	return siblings[index+1], true
}

// validateEntry runs before an id is allocated so failures never burn one.
func validateEntry(name string, priority process.Priority) error {
	if err := process.ValidateName(name); err != nil {
		return err
	}
	return process.ValidatePriority(priority)
}

// preOrder lists the subtree under start. Caller holds the lock.
func (t *Table) preOrder(start process.ID) []process.ID {
	if _, exists := t.nodes[start]; !exists {
		return nil
	}

	var ids []process.ID
	stack := []process.ID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, id)

		children := t.nodes[id].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return ids
}

// allocateID hands out the next unused id. Caller holds the lock.
func (t *Table) allocateID() process.ID {
	for {
		id := t.nextID
		t.nextID++
		if _, taken := t.nodes[id]; !taken {
			return id
		}
	}
}
