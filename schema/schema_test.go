package schema_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/schema"
)

type Team struct {
	_       struct{}  `ogm:",node,label=Club,labels=Organisation|Sports"`
	ID      *int64    `ogm:",id,internal"`
	Name    string    `ogm:"name"`
	Founded int
	Version int64     `ogm:",version"`
	Extra   []string  `ogm:",labels"`
	Players []*Player `ogm:"players,rel=HAS_PLAYER"`
	Sponsor *Sponsor  `ogm:"sponsor,nocascade"`
	Secret  string    `ogm:"-"`
}

type Player struct {
	ID     string               `ogm:",id,uuid"`
	Name   string               `ogm:"name"`
	Team   *Team                `ogm:"team,rel=HAS_PLAYER,dir=in"`
	Links  map[string]*Player   `ogm:"links"`
	Groups map[string][]*Player `ogm:"groups"`
	Roles  []*Contract          `ogm:"roles,rel=PLAYED_FOR,readonly"`
}

type Sponsor struct {
	Name string `ogm:"name,id"`
}

type Contract struct {
	ID    *int64 `ogm:"id,id"`
	Years int    `ogm:"years"`
	Team  *Team  `ogm:"team,target"`
}

func TestRegistryEntity(t *testing.T) {
	t.Parallel()
	r := schema.NewRegistry()
	team, err := r.Entity(&Team{})
	require.NoError(t, err)

	assert.Equal(t, "Team", team.Name)
	assert.Equal(t, "Club", team.Label)
	assert.Equal(t, []string{"Club", "Organisation", "Sports"}, team.Labels)
	assert.Equal(t, schema.IDInternal, team.IDKind)
	assert.True(t, team.UsesInternalID())
	assert.Empty(t, team.IDProperty())
	assert.True(t, team.HasVersion())
	require.NotNil(t, team.DynamicLabels)
	assert.Equal(t, "Extra", team.DynamicLabels.Field)

	var props []string
	for _, p := range team.Properties {
		props = append(props, p.Name)
	}
	assert.Equal(t, []string{"name", "founded"}, props)

	require.Len(t, team.Associations(), 2)
	players := team.Association("Players")
	require.NotNil(t, players)
	assert.Equal(t, "HAS_PLAYER", players.Type)
	assert.Equal(t, schema.Outgoing, players.Direction)
	assert.Equal(t, schema.OneToMany, players.Cardinality)
	assert.True(t, players.Cascade)
	assert.Equal(t, "Team.players", players.String())

	sponsor := team.Association("Sponsor")
	assert.Equal(t, "SPONSOR", sponsor.Type)
	assert.Equal(t, schema.OneToOne, sponsor.Cardinality)
	assert.False(t, sponsor.Cascade)
	assert.Equal(t, schema.IDAssigned, sponsor.Target.IDKind)
	assert.Equal(t, "name", sponsor.Target.IDProperty())

	player := players.Target
	assert.Equal(t, schema.IDGenerated, player.IDKind)
	back := player.Association("Team")
	require.True(t, players.Bidirectional())
	assert.Same(t, back, players.Obverse)
	assert.Same(t, players, back.Obverse)
	assert.Equal(t, schema.Incoming, back.Direction)

	links := player.Association("Links")
	assert.True(t, links.Dynamic())
	assert.Empty(t, links.Type)
	assert.Equal(t, schema.DynamicOneToOne, links.Cardinality)
	assert.Equal(t, schema.DynamicOneToMany, player.Association("Groups").Cardinality)
	assert.Nil(t, links.Obverse)

	roles := player.Association("Roles")
	assert.True(t, roles.ReadOnly)
	require.True(t, roles.HasProperties())
	assert.Equal(t, "Team", roles.Properties.Target.Field)
	require.NotNil(t, roles.Properties.ID)
	require.Len(t, roles.Properties.Properties, 1)
	assert.Equal(t, "years", roles.Properties.Properties[0].Name)
	assert.Same(t, team, roles.Target)
}

func TestRegistryCache(t *testing.T) {
	t.Parallel()
	r := schema.NewRegistry()
	a := r.MustEntity(Sponsor{})
	assert.Same(t, a, r.MustEntity(&Sponsor{}))
	assert.Same(t, a, r.MustEntity(reflect.TypeOf(Sponsor{})))
	assert.Same(t, a, r.MustEntity(reflect.ValueOf(&Sponsor{})))
	assert.Equal(t, 1, r.Len())

	// Relationship property structs are not entities.
	r.MustEntity(Team{})
	assert.Equal(t, 3, r.Len())

	r = schema.NewRegistry()
	var wg sync.WaitGroup
	got := make([]*schema.Entity, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = r.MustEntity(&Player{})
		}()
	}
	wg.Wait()
	for _, e := range got {
		assert.Same(t, got[0], e)
	}
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()
	type noID struct{ Name string }
	type twoIDs struct {
		A string `ogm:",id"`
		B string `ogm:",id"`
	}
	type badVersion struct {
		ID string `ogm:",id"`
		V  string `ogm:",version"`
	}
	type badLabels struct {
		ID     string `ogm:",id"`
		Labels []int  `ogm:",labels"`
	}
	type badDir struct {
		ID   string   `ogm:",id"`
		Next *Sponsor `ogm:"next,dir=up"`
	}
	type badUUID struct {
		ID int64 `ogm:",id,uuid"`
	}
	type badTarget struct {
		ID   string `ogm:",id"`
		Rels []*struct {
			To Sponsor `ogm:"to,target"`
		}
	}
	tests := []struct {
		name        string
		v           any
		unsupported bool
	}{
		{"Nil", nil, false},
		{"NotStruct", new(int), false},
		{"NoID", noID{}, false},
		{"TwoIDs", twoIDs{}, false},
		{"BadVersion", badVersion{}, true},
		{"BadLabels", badLabels{}, false},
		{"BadDirection", badDir{}, false},
		{"BadUUID", badUUID{}, true},
		{"BadTarget", badTarget{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := schema.NewRegistry()
			_, err := r.Entity(tt.v)
			require.Error(t, err)
			assert.Equal(t, tt.unsupported, ogm.IsUnsupportedIdentifierKind(err))
			assert.Zero(t, r.Len())
		})
	}
	assert.Panics(t, func() { schema.NewRegistry().MustEntity(noID{}) })
}

func TestNaming(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "FAVORITE_MOVIES", schema.RelationshipType("favoriteMovies"))
	assert.Equal(t, "HAS_PLAYER", schema.RelationshipType("HasPlayer"))
	assert.Equal(t, "name", schema.PropertyName("Name"))
	assert.Equal(t, "id", schema.PropertyName("ID"))
	assert.Equal(t, "createdAt", schema.PropertyName("CreatedAt"))
	assert.Empty(t, schema.PropertyName(""))
}

func TestKinds(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "generated", schema.IDGenerated.String())
	assert.Equal(t, schema.Incoming, schema.Outgoing.Opposite())
	assert.Equal(t, "incoming", schema.Incoming.String())
	assert.True(t, schema.DynamicOneToMany.IsDynamic())
	assert.Equal(t, "one-to-many", schema.OneToMany.String())
}
