// Package directory defines the entities stored in the shared keyspace and
// their item encodings.
//
// A Principal is an account's technical user: the subject of authorization,
// licensing, and identity-provider provisioning. Its relations (workstream
// assignments, group memberships) live as sibling items under the same
// partition; group-to-role links and per-role permissions live under their
// own partitions and are walked by pkg/rbac.
//
// Key layout:
//
//	USER#<id>       / METADATA               principal metadata
//	USER#<id>       / WORKSTREAM#<wsId>      workstream assignment
//	USER#<id>       / GROUP#<groupId>        group membership
//	GROUP#<groupId> / ROLE#<roleId>          group-to-role link
//	ROLE#<roleId>   / METADATA               role metadata
//	ROLE#<roleId>   / PERMISSION#<menuKey>   per-menu permission flags
//	ACCOUNT#<id>    / METADATA               account metadata
//	ENTERPRISE#<id> / METADATA               enterprise metadata
package directory
