package protocol

import (
	"github.com/txn2/sqlgate/pkg/statement"
	"github.com/txn2/sqlgate/pkg/types"
)

// QueryResults is the body of every statement response.
type QueryResults struct {
	ID       string         `json:"id"`
	InfoURI  string         `json:"infoUri"`
	NextURI  string         `json:"nextUri,omitempty"`
	Columns  []Column       `json:"columns,omitempty"`
	Data     [][]any        `json:"data,omitempty"`
	Stats    StatementStats `json:"stats"`
	Error    *QueryError    `json:"error,omitempty"`
	Warnings []any          `json:"warnings"`
}

// Column describes one result column.
type Column struct {
	Name          string              `json:"name"`
	Type          string              `json:"type"`
	TypeSignature types.TypeSignature `json:"typeSignature"`
}

// StatementStats carries the statement state.
type StatementStats struct {
	State         string `json:"state"`
	Queued        bool   `json:"queued"`
	Scheduled     bool   `json:"scheduled"`
	ProcessedRows int64  `json:"processedRows"`
}

// QueryError is the error record of a failed statement.
type QueryError struct {
	Message     string `json:"message"`
	ErrorCode   int    `json:"errorCode"`
	ErrorName   string `json:"errorName"`
	ErrorType   string `json:"errorType"`
	FailureInfo struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"failureInfo"`
}

func columnsOf(cols []types.Column) []Column {
	if cols == nil {
		return nil
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = Column{
			Name:          c.Name,
			Type:          types.WireType(c.Type),
			TypeSignature: types.Signature(c.Type),
		}
	}
	return out
}

func newStats(s statement.State, rows int64) StatementStats {
	return StatementStats{
		State:         s.String(),
		Queued:        s == statement.Queued,
		Scheduled:     s != statement.Queued,
		ProcessedRows: rows,
	}
}
