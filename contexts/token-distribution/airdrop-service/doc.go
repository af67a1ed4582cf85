// Package airdropservice contains the dropvest implementation of the airdrop
// claim authorizer and its claim orchestration.
//
// A campaign commits to its full recipient set through a single Merkle root.
// Claims prove membership of (address, amount, index) against that root and
// consume their index exactly once. Payout settlement and vesting/lock hand-off
// go through ports so the domain stays independent from ledger and storage.
package airdropservice
