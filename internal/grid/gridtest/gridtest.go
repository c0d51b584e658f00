// Package gridtest provides an in-memory grid for tests. It implements
// grid.Client directly and supports per-call failure injection.
package gridtest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gridkeeper/gridkeeper/internal/grid"
)

// Object is the stored state of one data object.
type Object struct {
	Replicas []grid.Replica
	Meta     []grid.AVU
	ACL      []grid.ACE
}

// Grid is an in-memory store shared by all clients it hands out. All methods
// are safe for concurrent use.
type Grid struct {
	mu          sync.Mutex
	objects     map[string]*Object
	collections map[string]struct{}
	fail        map[string]error // op + " " + path -> injected error
	calls       map[string]int   // op -> count
}

// New creates an empty grid containing only the root collection.
func New() *Grid {
	return &Grid{
		objects:     map[string]*Object{},
		collections: map[string]struct{}{"/": {}},
		fail:        map[string]error{},
		calls:       map[string]int{},
	}
}

// PutObject stores an object, creating parent collections implicitly.
func (g *Grid) PutObject(p string, obj Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[p] = &obj
	g.addParentsLocked(p)
}

// PutCollection creates a collection and its parents.
func (g *Grid) PutCollection(p string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.collections[p] = struct{}{}
	g.addParentsLocked(p)
}

// Object returns a snapshot of the stored object state, or nil.
func (g *Grid) Object(p string) *Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj, ok := g.objects[p]
	if !ok {
		return nil
	}
	cp := Object{
		Replicas: append([]grid.Replica(nil), obj.Replicas...),
		Meta:     append([]grid.AVU(nil), obj.Meta...),
		ACL:      append([]grid.ACE(nil), obj.ACL...),
	}
	return &cp
}

// HasCollection reports whether a collection exists.
func (g *Grid) HasCollection(p string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.collections[p]
	return ok
}

// FailWith injects err for the given operation on the given path. Operations
// are named after the Client methods in snake case, e.g. "get_replicas",
// "remove_replica", "create_replica", "add_metadata", "copy_object".
func (g *Grid) FailWith(op, p string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[op+" "+p] = err
}

// Calls returns how many times an operation ran (any path).
func (g *Grid) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Client returns a client view over the shared grid state.
func (g *Grid) Client() grid.Client {
	return &client{g: g}
}

// Dial is a grid.DialFunc handing out clients over the shared state.
func (g *Grid) Dial(ctx context.Context) (grid.Client, error) {
	return g.Client(), nil
}

func (g *Grid) addParentsLocked(p string) {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		g.collections[dir] = struct{}{}
		if dir == "/" || dir == "." {
			return
		}
	}
}

func (g *Grid) check(op, p string) error {
	g.calls[op]++
	if err, ok := g.fail[op+" "+p]; ok {
		return err
	}
	return nil
}

type client struct {
	g *Grid
}

func (c *client) Stat(ctx context.Context, p string) (grid.Kind, error) {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("stat", p); err != nil {
		return grid.KindNone, err
	}
	if _, ok := c.g.objects[p]; ok {
		return grid.KindDataObject, nil
	}
	if _, ok := c.g.collections[p]; ok {
		return grid.KindCollection, nil
	}
	return grid.KindNone, nil
}

func (c *client) GetReplicas(ctx context.Context, p string) ([]grid.Replica, error) {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("get_replicas", p); err != nil {
		return nil, err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	return append([]grid.Replica(nil), obj.Replicas...), nil
}

func (c *client) GetChecksumRecord(ctx context.Context, p string) ([]string, error) {
	avus, err := c.GetMetadata(ctx, p)
	if err != nil {
		return nil, err
	}
	var records []string
	for _, avu := range avus {
		if avu.Attribute == grid.AttrChecksum {
			records = append(records, avu.Value)
		}
	}
	return records, nil
}

func (c *client) RemoveReplica(ctx context.Context, p string, number int) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("remove_replica", p); err != nil {
		return err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		return fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	for i, r := range obj.Replicas {
		if r.Number == number {
			obj.Replicas = append(obj.Replicas[:i], obj.Replicas[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s replica %d", grid.ErrNotFound, p, number)
}

func (c *client) CreateReplica(ctx context.Context, p, resource string) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("create_replica", p); err != nil {
		return err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		return fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	// The store restores content from a valid replica, so the new copy
	// carries the same checksum.
	checksum := validChecksum(obj.Replicas)
	next := 0
	for _, r := range obj.Replicas {
		if r.Number >= next {
			next = r.Number + 1
		}
	}
	obj.Replicas = append(obj.Replicas, grid.Replica{
		Resource: resource,
		Number:   next,
		Checksum: checksum,
		Valid:    true,
		Created:  time.Now(),
	})
	return nil
}

func (c *client) GetMetadata(ctx context.Context, p string) ([]grid.AVU, error) {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("get_metadata", p); err != nil {
		return nil, err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		if _, isColl := c.g.collections[p]; isColl {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	return append([]grid.AVU(nil), obj.Meta...), nil
}

func (c *client) AddMetadata(ctx context.Context, p string, avus ...grid.AVU) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("add_metadata", p); err != nil {
		return err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		return fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	obj.Meta = append(obj.Meta, avus...)
	return nil
}

func (c *client) RemoveMetadata(ctx context.Context, p string, avus ...grid.AVU) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("remove_metadata", p); err != nil {
		return err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		return fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	kept := obj.Meta[:0]
	for _, have := range obj.Meta {
		match := false
		for _, rm := range avus {
			if have == rm {
				match = true
				break
			}
		}
		if !match {
			kept = append(kept, have)
		}
	}
	obj.Meta = kept
	return nil
}

func (c *client) GetACL(ctx context.Context, p string) ([]grid.ACE, error) {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("get_acl", p); err != nil {
		return nil, err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		if _, isColl := c.g.collections[p]; isColl {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	return append([]grid.ACE(nil), obj.ACL...), nil
}

func (c *client) SetACL(ctx context.Context, p string, entries ...grid.ACE) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("set_acl", p); err != nil {
		return err
	}
	obj, ok := c.g.objects[p]
	if !ok {
		if _, isColl := c.g.collections[p]; isColl {
			return nil
		}
		return fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	obj.ACL = append([]grid.ACE(nil), entries...)
	return nil
}

func (c *client) CopyObject(ctx context.Context, src, dst string) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("copy_object", src); err != nil {
		return err
	}
	obj, ok := c.g.objects[src]
	if !ok {
		return fmt.Errorf("%w: %s", grid.ErrNotFound, src)
	}
	c.g.objects[dst] = &Object{
		Replicas: []grid.Replica{{
			Resource: "resc-a",
			Number:   0,
			Checksum: validChecksum(obj.Replicas),
			Valid:    true,
			Created:  time.Now(),
		}},
	}
	c.g.addParentsLocked(dst)
	return nil
}

func (c *client) CreateCollection(ctx context.Context, p string) error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("create_collection", p); err != nil {
		return err
	}
	c.g.collections[p] = struct{}{}
	c.g.addParentsLocked(p)
	return nil
}

func (c *client) ListChildren(ctx context.Context, p string) ([]grid.Entry, error) {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if err := c.g.check("list_children", p); err != nil {
		return nil, err
	}
	if _, ok := c.g.collections[p]; !ok {
		return nil, fmt.Errorf("%w: %s", grid.ErrNotFound, p)
	}
	var children []grid.Entry
	for op := range c.g.objects {
		if path.Dir(op) == p {
			children = append(children, grid.Entry{Path: op, Kind: grid.KindDataObject})
		}
	}
	for cp := range c.g.collections {
		if cp != p && path.Dir(cp) == p {
			children = append(children, grid.Entry{Path: cp, Kind: grid.KindCollection})
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return strings.Compare(children[i].Path, children[j].Path) < 0
	})
	return children, nil
}

func (c *client) Close() error { return nil }

func validChecksum(replicas []grid.Replica) string {
	for _, r := range replicas {
		if r.Valid && r.Checksum != "" {
			return r.Checksum
		}
	}
	return ""
}
