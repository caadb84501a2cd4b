package persist

import (
	"testing"

	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/dialect/memory"
	"github.com/syssam/velox-ogm/schema"
)

type Team struct {
	ID      *int64 `ogm:",id,internal"`
	Name    string
	Players []*Player `ogm:"players,rel=HAS_PLAYER"`
	Coach   *Coach    `ogm:"coach,rel=COACHED_BY,nocascade"`
	Rivals  []*Team   `ogm:"rivals,rel=RIVAL_OF,readonly"`
}

type Player struct {
	ID   *int64 `ogm:",id,internal"`
	Name string
	Team *Team `ogm:"team,rel=HAS_PLAYER,dir=in"`
}

type Coach struct {
	Name string `ogm:"name,id"`
	Age  int
}

type Person struct {
	ID    *int64 `ogm:",id,internal"`
	Name  string
	Knows *Person `ogm:"knows,rel=KNOWS"`
}

type Movie struct {
	Title  string  `ogm:"title,id"`
	Actors []*Role `ogm:"actors,rel=ACTED_IN,dir=in"`
}

type Role struct {
	ID    *int64 `ogm:"id,id"`
	Name  string
	Actor *Actor `ogm:"actor,target"`
}

type Actor struct {
	Name string `ogm:"name,id"`
}

type Doc struct {
	Key     string `ogm:"key,id"`
	Version int64  `ogm:"version,version"`
	Body    string
}

type Tagged struct {
	ID     *int64   `ogm:",id,internal"`
	Labels []string `ogm:",labels"`
	Name   string
}

type Member struct {
	ID    *int64 `ogm:",id,internal"`
	Name  string
	Clubs []*Membership `ogm:"clubs,rel=MEMBER_OF"`
}

type Club struct {
	ID      *int64 `ogm:",id,internal"`
	Name    string
	Members []*ClubMembership `ogm:"members,rel=MEMBER_OF,dir=in"`
}

type Membership struct {
	ID    *int64 `ogm:"id,id"`
	Since int
	Club  *Club `ogm:"club,target"`
}

type ClubMembership struct {
	ID     *int64 `ogm:"id,id"`
	Since  int
	Member *Member `ogm:"member,target"`
}

type Ticket struct {
	ID    string `ogm:"id,id,uuid"`
	Title string
	Links map[string][]*Ticket `ogm:"links"`
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *memory.Driver) {
	t.Helper()
	drv := memory.New()
	opts = append([]Option{WithRegistry(schema.NewRegistry())}, opts...)
	return New(drv, opts...), drv
}

// savedNodes counts SaveNode statements writing label.
func savedNodes(drv *memory.Driver, label string) int {
	n := 0
	for _, s := range drv.Statements() {
		if s, ok := s.(dialect.SaveNode); ok && s.Node.Label == label {
			n++
		}
	}
	return n
}

// opIndex returns the position of the first statement of kind op, or -1.
func opIndex(drv *memory.Driver, op dialect.Op) int {
	for i, s := range drv.Statements() {
		if s.Op() == op {
			return i
		}
	}
	return -1
}
