package extensions

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/closecrowd/apyshell/internal/object"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	Register("sqlext", func() Extension { return &sqlExt{conns: map[string]*sqlConn{}} })
}

// sqlConn is one open database handle plus its uncommitted transaction.
// All statements run inside a transaction; sql_commit_ and sql_rollback_
// end it. The mutex keeps concurrent script tasks from interleaving on
// one handle.
type sqlConn struct {
	mu      sync.Mutex
	db      *sql.DB
	tx      *sql.Tx
	changes int64
}

func (c *sqlConn) ensureTx() error {
	if c.tx != nil {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

// sqlExt exposes SQL databases through named handles. sqlite files live
// under sql_root; network drivers (mysql, postgres) are shut off unless
// the host sets allow_net_db.
type sqlExt struct {
	mu       sync.Mutex
	conns    map[string]*sqlConn
	root     string
	allowNet bool
}

func (s *sqlExt) Name() string { return "sqlext" }

func (s *sqlExt) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.conns {
		c.mu.Lock()
		if c.tx != nil {
			c.tx.Rollback()
			c.tx = nil
		}
		c.db.Close()
		c.mu.Unlock()
		delete(s.conns, name)
	}
}

func (s *sqlExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	s.root = optStr(options, "sql_root", ".")
	s.allowNet = optBool(options, "allow_net_db")
	return map[string]object.BuiltinFunc{
		"sql_open_":     s.open,
		"sql_close_":    s.closeCmd,
		"sql_execute_":  s.execute,
		"sql_commit_":   s.commit,
		"sql_rollback_": s.rollback,
		"sql_changes_":  s.changesCmd,
		"sql_list_":     s.list,
	}, nil
}

func (s *sqlExt) get(cmd string, args []object.Object) (*sqlConn, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s() needs a handle name", cmd)
	}
	h, ok := args[0].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("%s() handle must be str", cmd)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[h.Value]
	if !ok {
		return nil, fmt.Errorf("%s(): no open database %q", cmd, h.Value)
	}
	return c, nil
}

// open opens sql_open_(handle, driver, dsn). The sqlite dsn is a bare file
// name resolved under the root; mysql and postgres take the driver's own
// dsn syntax.
func (s *sqlExt) open(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("sql_open_() takes exactly 3 arguments (%d given)", len(args))
	}
	strs := make([]string, 3)
	for i, a := range args {
		v, ok := a.(*object.Str)
		if !ok {
			return nil, fmt.Errorf("sql_open_() arguments must be str")
		}
		strs[i] = v.Value
	}
	handle, driver, dsn := strs[0], strs[1], strs[2]

	switch driver {
	case "sqlite3":
		if dsn == "" || strings.ContainsAny(dsn, `/\`) || strings.Contains(dsn, "..") {
			return nil, fmt.Errorf("sql_open_(): invalid sqlite database name %q", dsn)
		}
		if !strings.HasSuffix(dsn, ".db") {
			dsn += ".db"
		}
		dsn = filepath.Join(s.root, dsn)
	case "mysql", "postgres":
		if !s.allowNet {
			return nil, fmt.Errorf("sql_open_(): network databases are disabled")
		}
	default:
		return nil, fmt.Errorf("sql_open_(): unknown driver %q", driver)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[handle]; ok {
		return nil, fmt.Errorf("sql_open_(): handle %q already open", handle)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return object.False, nil
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return object.False, nil
	}
	s.conns[handle] = &sqlConn{db: db}
	return object.True, nil
}

func (s *sqlExt) closeCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	handle, err := oneStringArg("sql_close_", args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	c, ok := s.conns[handle]
	delete(s.conns, handle)
	s.mu.Unlock()
	if !ok {
		return object.False, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		c.tx.Rollback()
		c.tx = nil
	}
	c.db.Close()
	return object.True, nil
}

// execute runs sql_execute_(handle, stmt, params...). SELECTs return a
// list of row lists; other statements return the affected-row count.
func (s *sqlExt) execute(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("sql_execute_() needs a handle and a statement")
	}
	c, err := s.get("sql_execute_", args)
	if err != nil {
		return nil, err
	}
	stmt, ok := args[1].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("sql_execute_() statement must be str")
	}
	params := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		params = append(params, toDriverValue(a))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureTx(); err != nil {
		return nil, fmt.Errorf("sql_execute_(): %w", err)
	}
	if isQuery(stmt.Value) {
		rows, err := c.tx.Query(stmt.Value, params...)
		if err != nil {
			return nil, fmt.Errorf("sql_execute_(): %w", err)
		}
		defer rows.Close()
		return rowsToList(rows)
	}
	res, err := c.tx.Exec(stmt.Value, params...)
	if err != nil {
		return nil, fmt.Errorf("sql_execute_(): %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.changes = n
	}
	return &object.Int{Value: c.changes}, nil
}

func (s *sqlExt) commit(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	c, err := s.get("sql_commit_", args)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return object.True, nil
	}
	err = c.tx.Commit()
	c.tx = nil
	if err != nil {
		return object.False, nil
	}
	return object.True, nil
}

func (s *sqlExt) rollback(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	c, err := s.get("sql_rollback_", args)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return object.True, nil
	}
	err = c.tx.Rollback()
	c.tx = nil
	if err != nil {
		return object.False, nil
	}
	return object.True, nil
}

func (s *sqlExt) changesCmd(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	c, err := s.get("sql_changes_", args)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &object.Int{Value: c.changes}, nil
}

func (s *sqlExt) list(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	s.mu.Lock()
	names := make([]string, 0, len(s.conns))
	for name := range s.conns {
		names = append(names, name)
	}
	s.mu.Unlock()
	return sortedStrList(names), nil
}

func isQuery(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "PRAGMA")
}

// toDriverValue converts a script value to something database/sql accepts.
func toDriverValue(o object.Object) any {
	switch v := o.(type) {
	case *object.Int:
		return v.Value
	case *object.Float:
		return v.Value
	case *object.Str:
		return v.Value
	case *object.Bool:
		return v.Value
	case *object.Nil:
		return nil
	default:
		return object.Repr(o)
	}
}

// fromDriverValue converts a scanned column back to a script value.
func fromDriverValue(v any) object.Object {
	switch x := v.(type) {
	case nil:
		return object.None
	case int64:
		return &object.Int{Value: x}
	case float64:
		return &object.Float{Value: x}
	case bool:
		return object.FromBool(x)
	case []byte:
		return &object.Str{Value: string(x)}
	case string:
		return &object.Str{Value: x}
	default:
		return &object.Str{Value: fmt.Sprint(x)}
	}
}

func rowsToList(rows *sql.Rows) (object.Object, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sql_execute_(): %w", err)
	}
	out := &object.List{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sql_execute_(): %w", err)
		}
		row := &object.List{}
		for _, v := range raw {
			row.Elements = append(row.Elements, fromDriverValue(v))
		}
		out.Elements = append(out.Elements, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql_execute_(): %w", err)
	}
	return out, nil
}
