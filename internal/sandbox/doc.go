// Package sandbox evaluates user supplied Lua against scheduling history.
//
// Scripts see the request's appointments, clients, clinicians and
// CONSTRAINTS as globals, can print, and must assign a global named result.
// Only the base, string, table and math libraries are loaded, with the
// file, load and collector functions removed. Evaluation honours the caller's
// context through an instruction count hook.
package sandbox
