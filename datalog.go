package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	tblCreate = `CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	temperature REAL NOT NULL,
	pressure REAL NOT NULL,
	humidity REAL NOT NULL,
	humidity_scd REAL NOT NULL,
	co2 INTEGER NOT NULL
)`
	tblInsert = `INSERT INTO readings (ts, temperature, pressure, humidity, humidity_scd, co2) VALUES (?, ?, ?, ?, ?, ?)`
	tblSelect = `SELECT ts, temperature, pressure, humidity, humidity_scd, co2 FROM readings ORDER BY ts DESC, id DESC LIMIT ?`
)

// DataLog appends readings to a SQLite database.
type DataLog struct {
	db     *sql.DB
	insert *sql.Stmt
}

func OpenDataLog(path string) (*DataLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datalog: %w", err)
	}
	// A single connection keeps ":memory:" databases alive between calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(tblCreate); err != nil {
		db.Close()
		return nil, fmt.Errorf("datalog: %w", err)
	}
	insert, err := db.Prepare(tblInsert)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("datalog: %w", err)
	}
	return &DataLog{db: db, insert: insert}, nil
}

func (l *DataLog) Insert(r SensorReading) error {
	_, err := l.insert.Exec(r.Updated.UnixNano(), r.Temperature, r.Pressure, r.Humidity, r.HumiditySCD, r.CO2)
	if err != nil {
		return fmt.Errorf("datalog: %w", err)
	}
	return nil
}

// Last returns up to n readings, newest first.
func (l *DataLog) Last(n int) ([]SensorReading, error) {
	rows, err := l.db.Query(tblSelect, n)
	if err != nil {
		return nil, fmt.Errorf("datalog: %w", err)
	}
	defer rows.Close()

	var out []SensorReading
	for rows.Next() {
		var ts int64
		var r SensorReading
		if err := rows.Scan(&ts, &r.Temperature, &r.Pressure, &r.Humidity, &r.HumiditySCD, &r.CO2); err != nil {
			return nil, fmt.Errorf("datalog: %w", err)
		}
		stamped := NewSensorReading(time.Unix(0, ts))
		r.Updated, r.UpdatedStr = stamped.Updated, stamped.UpdatedStr
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *DataLog) Close() error {
	l.insert.Close()
	return l.db.Close()
}
