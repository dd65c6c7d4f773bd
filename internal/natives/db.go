package natives

import (
	"database/sql"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"rak/internal/fiber"
	"rak/internal/rakerr"
	"rak/internal/value"
)

var dbHandles = newHandleTable[*sql.DB]()

// registerDB installs the four database natives over database/sql, one
// driver blank-imported per supported `driver` argument — the same four
// the teacher's internal/database package carries, minus its
// security-scanning framing: here a connection is just a handle a Rak
// script can query and close.
func registerDB(vm *fiber.VM) {
	vm.RegisterNative("db_open", 2, nativeDBOpen)
	vm.RegisterNative("db_query", 2, nativeDBQuery)
	vm.RegisterNative("db_exec", 2, nativeDBExec)
	vm.RegisterNative("db_close", 1, nativeDBClose)
}

func nativeDBOpen(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	driver, err := argString(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	dsn, err := argString(ctx, 1)
	if err != nil {
		return value.Value{}, err
	}
	db, dberr := sql.Open(driver, dsn)
	if dberr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "db_open: %v", dberr)
	}
	if dberr := db.Ping(); dberr != nil {
		db.Close()
		return value.Value{}, rakerr.New(rakerr.NameError, "db_open: %v", dberr)
	}
	h := dbHandles.put(db)
	return value.Number(float64(h)), nil
}

// nativeDBQuery runs a query with no bound parameters and returns an
// Array of Records, one per row, column names as field names — keeping
// the native boundary entirely in Rak value terms.
func nativeDBQuery(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	handle, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	query, err := argString(ctx, 1)
	if err != nil {
		return value.Value{}, err
	}
	db, ok := dbHandles.get(int(handle))
	if !ok {
		return value.Value{}, rakerr.New(rakerr.NameError, "db_query: no open connection %v", handle)
	}
	rows, dberr := db.Query(query)
	if dberr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "db_query: %v", dberr)
	}
	defer rows.Close()

	cols, dberr := rows.Columns()
	if dberr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "db_query: %v", dberr)
	}

	var records []value.Value
	for rows.Next() {
		scanDest := make([]interface{}, len(cols))
		scanBuf := make([]sql.NullString, len(cols))
		for i := range scanBuf {
			scanDest[i] = &scanBuf[i]
		}
		if dberr := rows.Scan(scanDest...); dberr != nil {
			value.ReleaseAll(records)
			return value.Value{}, rakerr.New(rakerr.NameError, "db_query: %v", dberr)
		}
		fields := make([]value.Field, len(cols))
		for i, name := range cols {
			var cell value.Value
			if scanBuf[i].Valid {
				cell = value.NewString(scanBuf[i].String)
			} else {
				cell = value.Nil()
			}
			value.Retain(cell)
			fields[i] = value.Field{Name: name, Val: cell}
		}
		rec := value.NewRecord(fields)
		value.Retain(rec)
		records = append(records, rec)
	}
	return value.NewArray(records), nil
}

func nativeDBExec(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	handle, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	stmt, err := argString(ctx, 1)
	if err != nil {
		return value.Value{}, err
	}
	db, ok := dbHandles.get(int(handle))
	if !ok {
		return value.Value{}, rakerr.New(rakerr.NameError, "db_exec: no open connection %v", handle)
	}
	result, dberr := db.Exec(stmt)
	if dberr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "db_exec: %v", dberr)
	}
	n, _ := result.RowsAffected()
	return value.Number(float64(n)), nil
}

func nativeDBClose(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	handle, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	db, ok := dbHandles.get(int(handle))
	if !ok {
		return value.Nil(), nil
	}
	db.Close()
	dbHandles.remove(int(handle))
	return value.Nil(), nil
}
