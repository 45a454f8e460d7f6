// Package audit keeps an append-only trail of mutations made through the
// area, project, device and role services.
//
// Writes are asynchronous: services hand entries to a Recorder, which queues
// them on a bounded channel and writes them serially. A full queue drops the
// entry with a warning rather than slowing the request.
package audit
