package dialect

// Op identifies the kind of a statement.
type Op uint8

// Statement kinds understood by every driver.
const (
	OpSaveNode Op = iota + 1
	OpSaveNodes
	OpReadLabels
	OpLoadNode
	OpDeleteRelationships
	OpCreateRelationships
	OpCreateRelationshipsWithProperties
	OpLookupRelationship
	OpMatchRoots
	OpExpand
	OpFetchGraph
	OpDeleteNode
	OpDeleteNodes
	OpDeleteAll
	OpCount
)

var opNames = [...]string{
	OpSaveNode:                          "SaveNode",
	OpSaveNodes:                         "SaveNodes",
	OpReadLabels:                        "ReadLabels",
	OpLoadNode:                          "LoadNode",
	OpDeleteRelationships:               "DeleteRelationships",
	OpCreateRelationships:               "CreateRelationships",
	OpCreateRelationshipsWithProperties: "CreateRelationshipsWithProperties",
	OpLookupRelationship:                "LookupRelationship",
	OpMatchRoots:                        "MatchRoots",
	OpExpand:                            "Expand",
	OpFetchGraph:                        "FetchGraph",
	OpDeleteNode:                        "DeleteNode",
	OpDeleteNodes:                       "DeleteNodes",
	OpDeleteAll:                         "DeleteAll",
	OpCount:                             "Count",
}

// String returns the op name.
func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "Unknown"
}

// IsWrite reports whether statements of this kind change the graph.
func (o Op) IsWrite() bool {
	switch o {
	case OpReadLabels, OpLoadNode, OpLookupRelationship, OpMatchRoots, OpExpand, OpFetchGraph, OpCount:
		return false
	}
	return true
}

// Statement is one parameterized store operation. Text based drivers render
// it (see package cypher); embedded stores interpret it directly.
type Statement interface {
	Op() Op
}

// NodeRef addresses one node. With an empty IDProperty, ID is the store
// identifier; otherwise the node carries Label and IDProperty = ID.
type NodeRef struct {
	Label      string
	IDProperty string
	ID         any
}

// ByStoreID reports whether the reference is a store identifier.
func (n NodeRef) ByStoreID() bool { return n.IDProperty == "" }

type (
	// SaveNode creates or updates a single node. A NodeRef with a nil
	// store identifier always creates. Otherwise the node is matched
	// and, when VersionProperty is set, must carry Version (a missing
	// node counts as version 0); on success the version is incremented.
	//
	// Returns zero records on mismatch, otherwise one record with "id"
	// and, for versioned nodes, "version".
	SaveNode struct {
		Node            NodeRef
		Labels          []string // static labels, primary first
		Properties      map[string]any
		VersionProperty string
		Version         int64
		AddLabels       []string
		RemoveLabels    []string
	}

	// SaveNodes merges many nodes of one type keyed by IDProperty.
	// Returns one record per row with "index" and "id".
	SaveNodes struct {
		Labels     []string
		IDProperty string
		Rows       []NodeRow
	}

	// NodeRow is one row of SaveNodes.
	NodeRow struct {
		ID         any
		Properties map[string]any
	}

	// ReadLabels returns the labels of a node minus Exclude as one
	// record with "labels"; zero records if the node does not exist.
	ReadLabels struct {
		Node    NodeRef
		Exclude []string
	}

	// LoadNode resolves the store identifier of an existing node without
	// writing it. Returns one record with "id", or none.
	LoadNode struct {
		Node NodeRef
	}

	// DeleteRelationships removes the relationships of Type (any type when
	// empty) between Source and nodes labeled TargetLabel, except KeepIDs.
	DeleteRelationships struct {
		Source      any
		Type        string
		Incoming    bool
		TargetLabel string
		KeepIDs     []any
	}

	// CreateRelationships creates plain relationships. Rows carry their own
	// type when Type is empty. Returns one record per row with "index" and "id".
	CreateRelationships struct {
		Type     string
		Incoming bool
		Rows     []RelationshipRow
	}

	// CreateRelationshipsWithProperties creates relationships carrying
	// properties, or updates them in place when a row has an ID. Returns one
	// record per row with "index" and "id".
	CreateRelationshipsWithProperties struct {
		Type     string
		Incoming bool
		Rows     []RelationshipRow
	}

	// RelationshipRow is one relationship to write. Source and Target are
	// store identifiers; Incoming statements point Target to Source.
	RelationshipRow struct {
		Source     any
		Target     any
		Type       string
		ID         any
		Properties map[string]any
	}

	// LookupRelationship returns the identifier of the relationship of Type
	// from Source to Target as one record with "id", or none.
	LookupRelationship struct {
		Source   any
		Target   any
		Type     string
		Incoming bool
	}

	// MatchRoots returns one record with "id" per node labeled Label whose
	// properties equal Conditions and, if IDs is non-nil, whose store
	// identifier is in IDs.
	MatchRoots struct {
		Label      string
		Conditions map[string]any
		IDs        []any
	}

	// Expand follows relationships of Types (any when empty) from Sources to
	// nodes labeled TargetLabel. Returns records with "source",
	// "relationshipId" and "relatedNodeId".
	Expand struct {
		Sources     []any
		Types       []string
		Incoming    bool
		TargetLabel string
	}

	// FetchGraph returns the listed nodes and relationships. Node records
	// have "kind"="node", "id", "labels", "properties"; relationship
	// records have "kind"="relationship", "id", "type", "start", "end",
	// "properties".
	FetchGraph struct {
		NodeIDs         []any
		RelationshipIDs []any
	}

	// DeleteNode detaches and deletes one node; with VersionProperty set the
	// node must carry Version.
	DeleteNode struct {
		Node            NodeRef
		VersionProperty string
		Version         int64
	}

	// DeleteNodes detaches and deletes the nodes labeled Label whose
	// identifier is in IDs.
	DeleteNodes struct {
		Label      string
		IDProperty string
		IDs        []any
	}

	// DeleteAll detaches and deletes every node labeled Label.
	DeleteAll struct {
		Label string
	}

	// Count returns one record with "count".
	Count struct {
		Label string
	}
)

// Op implementations.
func (SaveNode) Op() Op                          { return OpSaveNode }
func (SaveNodes) Op() Op                         { return OpSaveNodes }
func (ReadLabels) Op() Op                        { return OpReadLabels }
func (LoadNode) Op() Op                          { return OpLoadNode }
func (DeleteRelationships) Op() Op               { return OpDeleteRelationships }
func (CreateRelationships) Op() Op               { return OpCreateRelationships }
func (CreateRelationshipsWithProperties) Op() Op { return OpCreateRelationshipsWithProperties }
func (LookupRelationship) Op() Op                { return OpLookupRelationship }
func (MatchRoots) Op() Op                        { return OpMatchRoots }
func (Expand) Op() Op                            { return OpExpand }
func (FetchGraph) Op() Op                        { return OpFetchGraph }
func (DeleteNode) Op() Op                        { return OpDeleteNode }
func (DeleteNodes) Op() Op                       { return OpDeleteNodes }
func (DeleteAll) Op() Op                         { return OpDeleteAll }
func (Count) Op() Op                             { return OpCount }
