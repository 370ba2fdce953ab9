// Package sqladapter persists factory instances as rows of a relational
// database through database/sql. Tables are named after the pluralized,
// snake cased model name unless configured otherwise; columns come from `db`
// struct tags or the snake cased field names, or from the keys of document
// models.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/lib/pq"

	factory "github.com/goliatone/go-factory"
	"github.com/goliatone/go-factory/internal/hydrate"
)

// Supported dialects.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// Tags consulted for column names.
var Tags = []string{"db", "factory", "json"}

var rules = inflect.NewDefaultRuleset()

// ExecQuerier is the subset of *sql.DB and *sql.Tx the adapter needs.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTable maps model to table instead of the derived name.
func WithTable(model, table string) Option {
	return func(a *Adapter) {
		a.tables[model] = table
	}
}

// WithPrimaryKey sets the primary key column. Defaults to "id".
func WithPrimaryKey(column string) Option {
	return func(a *Adapter) {
		if column != "" {
			a.primaryKey = column
		}
	}
}

// WithStrict rejects attributes that match no struct field.
func WithStrict() Option {
	return func(a *Adapter) {
		a.strict = true
	}
}

// WithLogger logs every statement at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Adapter is a factory.Adapter inserting rows on Save and deleting them on
// Destroy.
type Adapter struct {
	db         ExecQuerier
	dialect    string
	tables     map[string]string
	primaryKey string
	strict     bool
	logger     *slog.Logger
}

var _ factory.Adapter = (*Adapter)(nil)

// New wraps db for the given dialect.
func New(db ExecQuerier, dialect string, opts ...Option) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("sqladapter: database is required")
	}
	switch dialect {
	case SQLite, Postgres, MySQL:
	default:
		return nil, fmt.Errorf("sqladapter: unsupported dialect %q", dialect)
	}
	a := &Adapter{
		db:         db,
		dialect:    dialect,
		tables:     map[string]string{},
		primaryKey: "id",
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Open opens a database for dialect and wraps it. The caller closes the
// returned *sql.DB.
func Open(dialect, dsn string, opts ...Option) (*Adapter, *sql.DB, error) {
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqladapter: open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	a, err := New(db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return a, db, nil
}

// Table returns the table rows of model are stored in.
func (a *Adapter) Table(model factory.Model) string {
	if table, ok := a.tables[model.Name()]; ok {
		return table
	}
	return rules.Underscore(rules.Pluralize(model.Name()))
}

// Build instantiates model and assigns attrs to it.
func (a *Adapter) Build(model factory.Model, attrs factory.Attrs) (any, error) {
	return a.Set(attrs, model.New(), model)
}

// Set assigns attrs onto a document or struct instance.
func (a *Adapter) Set(attrs factory.Attrs, instance any, model factory.Model) (any, error) {
	if doc, ok := instance.(map[string]any); ok {
		for key, value := range attrs {
			doc[key] = value
		}
		return doc, nil
	}
	opts := []hydrate.DecoderOption{hydrate.WithTagNames(Tags...)}
	if a.strict {
		opts = append(opts, hydrate.WithDisallowUnknownFields())
	}
	if err := hydrate.NewDecoder(opts...).Decode(hydrate.Context{Model: model.Name()}, attrs, instance); err != nil {
		return nil, fmt.Errorf("sqladapter: build %s: %w", model.Name(), err)
	}
	return instance, nil
}

// Get reads a column or attribute of instance.
func (a *Adapter) Get(instance any, attr string, model factory.Model) (any, error) {
	value, ok := hydrate.Lookup(instance, attr, Tags...)
	if !ok {
		return nil, &factory.NotFoundError{Kind: "attribute", Name: model.Name() + "." + attr}
	}
	return value, nil
}

// Save inserts instance and writes the generated primary key back to it.
func (a *Adapter) Save(ctx context.Context, instance any, model factory.Model) (any, error) {
	columns, values, hasKey := a.row(instance)
	table := a.Table(model)

	placeholders := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, column := range columns {
		placeholders[i] = a.placeholder(i + 1)
		quoted[i] = a.quote(column)
	}

	var query string
	if len(columns) == 0 {
		query = a.insertDefaults(table)
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			a.quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	}

	id, err := a.insert(ctx, query, values)
	if err != nil {
		return nil, classify(table, fmt.Errorf("sqladapter: insert %s: %w", table, err))
	}
	if hasKey || id == nil {
		return instance, nil
	}
	return a.Set(factory.Attrs{a.primaryKey: id}, instance, model)
}

func (a *Adapter) insert(ctx context.Context, query string, values []any) (any, error) {
	a.logger.Debug("sql insert", slog.String("query", query), slog.Int("args", len(values)))
	if a.dialect == Postgres {
		var id int64
		if err := a.db.QueryRowContext(ctx, query+" RETURNING "+a.quote(a.primaryKey), values...).Scan(&id); err != nil {
			return nil, err
		}
		return id, nil
	}
	result, err := a.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil || id == 0 {
		return nil, nil
	}
	return id, nil
}

func (a *Adapter) insertDefaults(table string) string {
	if a.dialect == MySQL {
		return fmt.Sprintf("INSERT INTO %s () VALUES ()", a.quote(table))
	}
	return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", a.quote(table))
}

// Destroy deletes the row holding the primary key of instance.
func (a *Adapter) Destroy(ctx context.Context, instance any, model factory.Model) (any, error) {
	id, err := a.Get(instance, a.primaryKey, model)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: destroy %s: %w", model.Name(), err)
	}
	table := a.Table(model)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", a.quote(table), a.quote(a.primaryKey), a.placeholder(1))
	a.logger.Debug("sql delete", slog.String("query", query))
	if _, err := a.db.ExecContext(ctx, query, id); err != nil {
		return nil, classify(table, fmt.Errorf("sqladapter: delete %s: %w", table, err))
	}
	return instance, nil
}

// row lists the columns and values of instance in column order. The primary
// key is left out while it holds a zero value.
func (a *Adapter) row(instance any) ([]string, []any, bool) {
	values := map[string]any{}
	if doc, ok := instance.(map[string]any); ok {
		for key, value := range doc {
			values[key] = value
		}
	} else {
		for _, field := range hydrate.Fields(instance, Tags...) {
			column := field.Name
			if !field.Tagged {
				column = rules.Underscore(field.GoName)
			}
			values[column] = field.Value
		}
	}

	hasKey := false
	if id, ok := values[a.primaryKey]; ok {
		if isZero(id) {
			delete(values, a.primaryKey)
		} else {
			hasKey = true
		}
	}

	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	args := make([]any, len(columns))
	for i, column := range columns {
		args[i] = values[column]
	}
	return columns, args, hasKey
}

func (a *Adapter) placeholder(n int) string {
	if a.dialect == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (a *Adapter) quote(identifier string) string {
	if a.dialect == MySQL {
		return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(identifier)
}

func isZero(value any) bool {
	if value == nil {
		return true
	}
	return reflect.ValueOf(value).IsZero()
}
