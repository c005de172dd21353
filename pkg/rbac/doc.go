// Package rbac resolves a caller's effective menu permissions from the
// user, group, role, and permission relations held in the directory store.
//
// Resolution walks user to groups, groups to roles, and roles to their
// per-menu permission rows, merging flags across roles with a logical OR so
// that combining roles never removes access. A legacy fallback maps the
// principal's assigned role name to a role when no group links exist.
//
// Resolved results can be fronted by a Redis cache keyed per caller and
// tenant; the cache is invalidated wholesale when role or group data
// changes.
package rbac
