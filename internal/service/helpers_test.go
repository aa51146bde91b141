package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/store"
	"github.com/noah-isme/markwise-go-api/pkg/gradebook"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// testCache returns a cache with no Redis client: every read misses and
// writes are no-ops, which is what service tests want.
func testCache() *store.CourseworkCache {
	return store.NewCourseworkCache(nil, 0, zerolog.Nop())
}

type allowAllPermissions struct{}

func (allowAllPermissions) Can(context.Context, Actor, string, uint) bool { return true }

type denyAllPermissions struct{}

func (denyAllPermissions) Can(context.Context, Actor, string, uint) bool { return false }

// permissionSet grants only the listed actions.
type permissionSet map[string]bool

func grantOnly(actions ...string) permissionSet {
	set := make(permissionSet, len(actions))
	for _, action := range actions {
		set[action] = true
	}
	return set
}

func (p permissionSet) Can(_ context.Context, _ Actor, action string, _ uint) bool {
	return p[action]
}

type recordingNotifier struct {
	events   []string
	payloads []map[string]interface{}
}

func (n *recordingNotifier) Send(_ context.Context, event string, payload map[string]interface{}) {
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
}

type stubGradebook struct {
	writes []map[uint]gradebook.GradeRecord
	refs   []string
	ok     bool
	err    error
}

func (g *stubGradebook) WriteGrades(_ context.Context, courseworkRef string, grades map[uint]gradebook.GradeRecord) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.refs = append(g.refs, courseworkRef)
	g.writes = append(g.writes, grades)
	return g.ok, nil
}
