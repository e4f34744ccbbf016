// Package bicasdb records processing runs and their segments in a ClickHouse database.
package bicasdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Connection owns the ClickHouse connection of one processing run. The zero
// value and a nil pointer are valid, unconnected connections whose Record
// methods do nothing.
type Connection struct {
	conn       clickhouse.Conn
	mu         sync.Mutex
	err        error
	run        *RunMessage
	segmentmsg chan *SegmentMessage
	done       chan struct{}
	sync.WaitGroup
}

const databaseName = "bicas" // official SQL name of the database

// DefaultAddr is the server used when none is configured.
const DefaultAddr = "localhost:9000"

// IsConnected reports whether the connection is open and has had no error.
func (db *Connection) IsConnected() bool {
	if db == nil || db.conn == nil {
		return false
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.err == nil
}

// Err returns the first error met on this connection, if any.
func (db *Connection) Err() error {
	if db == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.err
}

func (db *Connection) setErr(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.err == nil {
		db.err = err
	}
}

// PingServer checks that a ClickHouse server answers at addr.
func PingServer(addr string) error {
	db := createConnection(addr)
	if !db.IsConnected() {
		return fmt.Errorf("database is not connected: %w", db.Err())
	}
	defer db.conn.Close()
	v, err := db.conn.ServerVersion()
	if err != nil {
		return err
	}
	fmt.Printf("ClickHouse server is alive. Version:\n%s\n", v)
	return nil
}

// StartConnection connects to the server at addr, records the start of run,
// and handles segment messages until abort is closed. After closing abort, call
// Wait to be sure the end of the run was recorded. When no server answers the
// returned Connection is unconnected and its Err says why.
func StartConnection(addr string, run *RunMessage, abort <-chan struct{}) *Connection {
	db := createConnection(addr)
	db.run = run
	if !db.IsConnected() {
		return db
	}
	db.insert("runs", run.values())
	db.Add(1)
	go db.handleConnection(abort)
	return db
}

// DummyConnection returns a Connection that records nothing.
func DummyConnection() *Connection {
	return &Connection{}
}

func createConnection(addr string) *Connection {
	db := &Connection{}
	auth := clickhouse.Auth{
		Database: databaseName,
		Username: os.Getenv("BICAS_DB_USER"),
		Password: os.Getenv("BICAS_DB_PASSWORD"),
	}
	client := clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{
			{Name: "bicas", Version: "unknown"},
		},
	}
	opt := clickhouse.Options{
		Addr:        []string{addr},
		Auth:        auth,
		ClientInfo:  client,
		DialTimeout: 2 * time.Second,
	}
	conn, err := clickhouse.Open(&opt)
	if err != nil {
		db.err = err
		return db
	}

	// Ping the server at the DB connection.
	if err = conn.Ping(context.Background()); err != nil {
		if exception, ok := err.(*clickhouse.Exception); ok {
			err = fmt.Errorf("exception [%d] %s: %w", exception.Code, exception.Message, err)
		}
		conn.Close()
		db.err = err
		return db
	}
	db.conn = conn
	db.segmentmsg = make(chan *SegmentMessage)
	db.done = make(chan struct{})
	return db
}

func (db *Connection) insert(table string, values []interface{}) {
	const nowait = false
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	query := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders)
	if err := db.conn.AsyncInsert(context.Background(), query, nowait, values...); err != nil {
		db.setErr(fmt.Errorf("AsyncInsert into %s: %w", table, err))
	}
}

func (db *Connection) handleConnection(abort <-chan struct{}) {
	defer db.Done()
	defer close(db.done)
	for {
		select {
		case <-abort:
			db.disconnect()
			return
		case msg := <-db.segmentmsg:
			if db.IsConnected() {
				db.insert("segments", msg.values())
			}
		}
	}
}

// disconnect records the end of the run and closes the connection.
func (db *Connection) disconnect() {
	if db.IsConnected() {
		db.run.End = time.Now()
		db.insert("runs", db.run.values())
	}
	db.conn.Close()
}

// RecordSegment stores one segment of the run in the DB (if it's open). It
// blocks until the message is accepted or the connection has shut down, so
// segments are stored in the order they are recorded.
func (db *Connection) RecordSegment(msg *SegmentMessage) {
	if !db.IsConnected() || msg == nil {
		return
	}
	if msg.ID == "" {
		msg.ID = NewID()
	}
	msg.RunID = db.run.ID
	select {
	case db.segmentmsg <- msg:
	case <-db.done:
	}
}
