package dynamodb

import (
	"strings"
	"time"
)

// Single-table layout. Every record carries a composite primary key plus
// two global secondary indexes:
//
//	item             PK                SK             GSI1PK          GSI1SK               GSI2PK
//	node             NODE#<id>         METADATA       TYPE#NODE       UPDATED#<ts>#<id>    NODETYPE#<type>
//	edge (canonical) EDGE#<id>         METADATA       TYPE#EDGE       UPDATED#<ts>#<id>    EDGETYPE#<type>
//	edge (adjacency) NODE#<endpoint>   EDGE#<id>      -               -                    -
//	snapshot         SNAPSHOT#<id>     METADATA       TYPE#SNAPSHOT   UPDATED#<ts>#<id>    SNAPSTATUS#<status>
//	snapshot chunk   SNAPSHOT#<id>     CHUNK#<k>#<n>  -               -                    -
//	audit entry      AUDIT#<id>        METADATA       TYPE#AUDIT      UPDATED#<ts>#<id>    OUTBOX#PENDING (sparse)
//	metrics run      METRICS#<id>      METADATA       TYPE#METRICS    UPDATED#<ts>#<id>    -
//	connection       CONN#<id>         METADATA       TYPE#CONN       UPDATED#<ts>#<id>    -
//	advisory lock    LOCK#<resource>   METADATA       -               -                    -
//
// GSI1 lists a record class newest first. GSI2 covers the secondary
// dimension each class is counted or drained by: node/edge type for
// CountByType, snapshot status for status-filtered listings, and the
// sparse outbox partition for unpublished audit entries. Adjacency items
// duplicate the canonical edge attributes so a node's incident edges are
// one Query away; they carry no GSI keys, which keeps every class listing
// free of doubles.
const (
	pkNodePrefix     = "NODE#"
	pkEdgePrefix     = "EDGE#"
	pkSnapshotPrefix = "SNAPSHOT#"
	pkAuditPrefix    = "AUDIT#"
	pkMetricsPrefix  = "METRICS#"
	pkConnPrefix     = "CONN#"
	pkLockPrefix     = "LOCK#"

	skMetadata    = "METADATA"
	skEdgePrefix  = "EDGE#"
	skChunkPrefix = "CHUNK#"

	gsi1Name = "GSI1"
	gsi2Name = "GSI2"

	classNode     = "TYPE#NODE"
	classEdge     = "TYPE#EDGE"
	classSnapshot = "TYPE#SNAPSHOT"
	classAudit    = "TYPE#AUDIT"
	classMetrics  = "TYPE#METRICS"
	classConn     = "TYPE#CONN"

	gsi2NodeTypePrefix   = "NODETYPE#"
	gsi2EdgeTypePrefix   = "EDGETYPE#"
	gsi2SnapStatusPrefix = "SNAPSTATUS#"
	gsi2OutboxPending    = "OUTBOX#PENDING"
)

// sortKeyTimeFormat is fixed width so lexicographic order on GSI1SK equals
// chronological order; RFC3339Nano trims trailing zeros and would not sort.
const sortKeyTimeFormat = "2006-01-02T15:04:05.000000000Z"

func sortableTime(t time.Time) string {
	return t.UTC().Format(sortKeyTimeFormat)
}

// updatedSortKey builds the GSI sort key; the id suffix breaks ties
// between records updated in the same nanosecond.
func updatedSortKey(t time.Time, id string) string {
	return "UPDATED#" + sortableTime(t) + "#" + id
}

func idFromKey(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}
