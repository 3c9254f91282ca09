// Package campaign implements campaign lifecycle management.
//
// The service layer owns the lifecycle state machine: draft campaigns are
// authored and edited, move to scheduled or straight to sending, and finish
// as sent or cancelled. Preparing a campaign for sending materializes one
// recipient record per targeted user and hands the recipient set to the
// batch planner; completion itself is observed by the dispatcher, not here.
//
// Persistence goes through the ledger interfaces; audience resolution is an
// external collaborator behind the Audience interface.
package campaign
