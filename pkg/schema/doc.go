// Package schema validates compiled programs before they are built into automatons,
// and checks run inputs against the types a program declares.
//
// Structural problems (duplicate labels, unresolved format references, malformed
// ranges, broken depth annotations) are collected and returned together as an
// *AggregateError so a broken schema can be fixed in one pass.
package schema
