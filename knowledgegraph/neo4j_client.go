package knowledgegraph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"sqlnexus/core/model"
)

// Neo4jClient is the Cypher-backed Client, the Go rendering of
// KnowledgeGraphService's primary (non-fallback) path: Database/Schema/
// Table/Column/Index nodes connected by HAS_SCHEMA/CONTAINS/HAS_COLUMN/
// HAS_INDEX/REFERENCES/RELATED_TO relationships.
type Neo4jClient struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jClient opens a driver against uri with basic auth and verifies
// connectivity once, mirroring KnowledgeGraphService._connect.
func NewNeo4jClient(ctx context.Context, uri, username, password string) (*Neo4jClient, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("knowledgegraph: connect: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("knowledgegraph: verify connectivity: %w", err)
	}
	return &Neo4jClient{driver: driver}, nil
}

// Close shuts down the underlying driver.
func (c *Neo4jClient) Close() error {
	return c.driver.Close(context.Background())
}

// BuildFromSchema MERGEs one Database/Schema/Table/Column node per schema
// entity and one REFERENCES/RELATED_TO edge per foreign key.
func (c *Neo4jClient) BuildFromSchema(ctx context.Context, snap *model.SchemaSnapshot) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	dbName := snap.DatabaseName
	if dbName == "" {
		dbName = "unknown"
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (db:Database {name: $db_name})
			SET db.total_tables = $total_tables, db.last_updated = datetime()
		`, map[string]any{"db_name": dbName, "total_tables": len(snap.Tables)}); err != nil {
			return nil, err
		}

		for _, t := range snap.Tables {
			schemaName := t.SchemaName
			if schemaName == "" {
				schemaName = "public"
			}

			if _, err := tx.Run(ctx, `
				MATCH (db:Database {name: $db_name})
				MERGE (s:Schema {name: $schema_name})
				MERGE (db)-[:HAS_SCHEMA]->(s)
			`, map[string]any{"db_name": dbName, "schema_name": schemaName}); err != nil {
				return nil, err
			}

			if _, err := tx.Run(ctx, `
				MATCH (s:Schema {name: $schema_name})
				MERGE (tbl:Table {name: $table_name, schema: $schema_name})
				SET tbl.column_count = $column_count
				MERGE (s)-[:CONTAINS]->(tbl)
			`, map[string]any{"schema_name": schemaName, "table_name": t.TableName, "column_count": len(t.Columns)}); err != nil {
				return nil, err
			}

			for _, col := range t.Columns {
				if _, err := tx.Run(ctx, `
					MATCH (tbl:Table {name: $table_name, schema: $schema_name})
					MERGE (c:Column {name: $col_name, table: $table_name, schema: $schema_name})
					SET c.data_type = $data_type, c.is_nullable = $is_nullable
					MERGE (tbl)-[:HAS_COLUMN]->(c)
				`, map[string]any{
					"schema_name": schemaName, "table_name": t.TableName,
					"col_name": col.Name, "data_type": col.DataType, "is_nullable": col.Nullable,
				}); err != nil {
					return nil, err
				}
			}

			for _, fk := range t.ForeignKeys {
				if _, err := tx.Run(ctx, `
					MATCH (t1:Table {name: $table_name, schema: $schema_name})
					MATCH (t2:Table {name: $ref_table, schema: $schema_name})
					MATCH (c1:Column {name: $col_name, table: $table_name, schema: $schema_name})
					MATCH (c2:Column {name: $ref_col, table: $ref_table, schema: $schema_name})
					MERGE (c1)-[:REFERENCES]->(c2)
					MERGE (t1)-[:RELATED_TO]->(t2)
				`, map[string]any{
					"schema_name": schemaName, "table_name": t.TableName,
					"ref_table": fk.ReferencesTable, "col_name": fk.Column, "ref_col": fk.ReferencesColumn,
				}); err != nil {
					return nil, err
				}
			}

			for _, idx := range t.Indexes {
				if _, err := tx.Run(ctx, `
					MATCH (tbl:Table {name: $table_name, schema: $schema_name})
					MERGE (i:Index {name: $idx_name})
					MERGE (tbl)-[:HAS_INDEX]->(i)
				`, map[string]any{"schema_name": schemaName, "table_name": t.TableName, "idx_name": idx}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

// TableRelationships runs a variable-length path query bounded by maxDepth,
// the Cypher analogue of LocalGraph.TableRelationships's BFS.
func (c *Neo4jClient) TableRelationships(ctx context.Context, table string, maxDepth int) (RelatedTables, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (t:Table {name: $table_name})-[:RELATED_TO*1..%d]-(related:Table)
			RETURN DISTINCT related.name AS name, length(shortestPath((t)-[:RELATED_TO*]-(related))) AS distance
		`, maxDepth), map[string]any{"table_name": table})
		if err != nil {
			return nil, err
		}

		var rels []Relationship
		var names []string
		for records.Next(ctx) {
			rec := records.Record()
			name, _ := rec.Get("name")
			distance, _ := rec.Get("distance")
			n, _ := name.(string)
			d, _ := distance.(int64)
			rels = append(rels, Relationship{Source: table, Target: n, Distance: int(d)})
			names = append(names, n)
		}
		return RelatedTables{Table: table, RelatedTables: names, Relationships: rels}, records.Err()
	})
	if err != nil {
		return RelatedTables{}, err
	}
	return result.(RelatedTables), nil
}

// FindJoinPath runs Cypher's shortestPath between two named tables.
func (c *Neo4jClient) FindJoinPath(ctx context.Context, table1, table2 string) ([]string, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH p = shortestPath((t1:Table {name: $t1})-[:RELATED_TO*]-(t2:Table {name: $t2}))
			RETURN [n IN nodes(p) | n.name] AS path
		`, map[string]any{"t1": table1, "t2": table2})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return []string(nil), records.Err()
		}
		raw, _ := records.Record().Get("path")
		items, _ := raw.([]any)
		path := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				path = append(path, s)
			}
		}
		return path, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
