// Package store provides the SQLite database behind tablegate.
//
// The schema holds:
//   - the authorization tables (xtcasUserPrivilege, xtcasUserGroup,
//     xtcasLuUserPrivilegeUserGroup, xtcasUsers, xtcasAuthorities)
//   - the xvcasUserPrivileges view of effective privileges
//   - batch_log, one row per executed batch
//
// Application tables are created by the deployment (or by scenario setup)
// and are only reached through catalog procedures and view requests.
//
// # Batches
//
// BeginBatch takes a dedicated connection out of the pool and opens a
// transaction on it. Everything in a batch runs through Batch.Querier.
// The connection goes back to the pool after Commit or Rollback. When a
// rollback fails the connection is discarded instead, since its state is
// unknown.
//
// # Ordering
//
// Batch log reads order by seq ASC, id ASC COLLATE BINARY so results do not
// depend on insertion timing.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
