// Package vestingservice contains the dropvest vesting engine: immutable
// unlock schedules, one position per beneficiary, discrete unlock math and
// time-locked escrow for locked airdrop claims.
package vestingservice
