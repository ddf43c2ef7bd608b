// Package schema defines the DoDash document model and its validation rules.
//
// # Overview
//
// All application state lives in a single JSON document. There is no
// per-entity storage: the whole document is read and replaced on every
// change.
//
//	{
//	  "lists": [
//	    {
//	      "id": "default",
//	      "name": "My Tasks",
//	      "color": "#8B5CF6",
//	      "tasks": [
//	        {"id": "t1", "text": "Ship it", "completed": false, "order": 0}
//	      ]
//	    }
//	  ]
//	}
//
// # Identifiers
//
// List and task ids are opaque. Older clients wrote numeric ids
// (millisecond timestamps) while newer ones write strings, so [ID] accepts
// both and preserves the JSON kind when re-encoding.
//
// # Validation
//
// One strict policy is used everywhere a document crosses a trust
// boundary (HTTP writes, startup repair, store reads):
//
//   - the document has a "lists" array
//   - every list has an id, a string name, a #RRGGBB color and a tasks array
//   - every task has an id, non-empty text and a boolean completed flag
//   - list ids are unique, task ids are unique inside their list
//
// The structural rules are an embedded JSON Schema; uniqueness is checked
// natively. See [Parse] and [Document.Validate].
//
// # Operations
//
// The Document methods in ops.go are pure transforms used by the client
// mirror to compute the next full document from the current one.
package schema
