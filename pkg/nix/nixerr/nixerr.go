// Package nixerr defines the matching engine's stable error taxonomy.
//
// Codes are numbered exactly as program/error.rs numbers them in the
// originating protocol, so that a caller translating an error back into a
// wire response can reuse the same numeric table.
package nixerr

import (
	"errors"
	"fmt"
)

// Code is a stable numeric error identifier. Values must never be renumbered.
type Code uint32

const (
	InvalidMarketParameters        Code = 0
	InvalidDepositAccounts         Code = 1
	InvalidWithdrawAccounts        Code = 2
	InvalidCancel                  Code = 3
	InvalidFreeList                Code = 4
	AlreadyClaimedSeat             Code = 5
	PostOnlyCrosses                Code = 6
	AlreadyExpired                 Code = 7
	InsufficientOut                Code = 8
	InvalidPlaceOrderFromWalletParams Code = 9
	WrongIndexHintParams            Code = 10
	PriceNotPositive                Code = 11
	OrderWouldOverflow              Code = 12
	OrderTooSmall                   Code = 13
	NumericalOverflow               Code = 14
	MissingGlobal                   Code = 15
	GlobalInsufficient              Code = 16
	IncorrectAccount                Code = 17
	InvalidMint                     Code = 18
	TooManyGlobalSeats              Code = 19
	InvalidGlobalBidOrder           Code = 20
	InvalidEvict                    Code = 21
	InvalidClean                    Code = 22
	InvalidMarginfiAccount          Code = 23
	OracleNotSetup                  Code = 24
	IncorrectOracleAccount          Code = 25
	MarginfiAccountInitializationFailed Code = 26
	InvalidOracleAccount            Code = 27
	PriceOracleMathError            Code = 28
	StaleOracle                     Code = 29
	InvalidPrice                    Code = 30
	InvalidSwitchboardDecimalConversion Code = 31
	PythPushWrongAccountOwner       Code = 32
	InvalidFeeReceiver              Code = 33
	InvalidVault                    Code = 34
	InvalidMarginfiGroup            Code = 35
	InvalidMarginfiBank             Code = 36
	InvalidMarginfiLiquidityVault   Code = 37
	MarginfiCpiFailed               Code = 38
	InvalidMarginfiState            Code = 39
	MaxActiveLoansExceeded          Code = 40
	InvalidActiveLoan               Code = 41
	InvalidAskReverseOrder          Code = 42
	InvalidAdminKey                 Code = 43
	InvalidGlobalMint               Code = 44
)

var names = map[Code]string{
	InvalidMarketParameters:             "InvalidMarketParameters",
	InvalidDepositAccounts:              "InvalidDepositAccounts",
	InvalidWithdrawAccounts:             "InvalidWithdrawAccounts",
	InvalidCancel:                       "InvalidCancel",
	InvalidFreeList:                     "InvalidFreeList",
	AlreadyClaimedSeat:                  "AlreadyClaimedSeat",
	PostOnlyCrosses:                     "PostOnlyCrosses",
	AlreadyExpired:                      "AlreadyExpired",
	InsufficientOut:                     "InsufficientOut",
	InvalidPlaceOrderFromWalletParams:   "InvalidPlaceOrderFromWalletParams",
	WrongIndexHintParams:                "WrongIndexHintParams",
	PriceNotPositive:                    "PriceNotPositive",
	OrderWouldOverflow:                  "OrderWouldOverflow",
	OrderTooSmall:                       "OrderTooSmall",
	NumericalOverflow:                   "NumericalOverflow",
	MissingGlobal:                       "MissingGlobal",
	GlobalInsufficient:                  "GlobalInsufficient",
	IncorrectAccount:                    "IncorrectAccount",
	InvalidMint:                         "InvalidMint",
	TooManyGlobalSeats:                  "TooManyGlobalSeats",
	InvalidGlobalBidOrder:               "InvalidGlobalBidOrder",
	InvalidEvict:                        "InvalidEvict",
	InvalidClean:                        "InvalidClean",
	InvalidMarginfiAccount:              "InvalidMarginfiAccount",
	OracleNotSetup:                      "OracleNotSetup",
	IncorrectOracleAccount:              "IncorrectOracleAccount",
	MarginfiAccountInitializationFailed: "MarginfiAccountInitializationFailed",
	InvalidOracleAccount:                "InvalidOracleAccount",
	PriceOracleMathError:                "PriceOracleMathError",
	StaleOracle:                         "StaleOracle",
	InvalidPrice:                        "InvalidPrice",
	InvalidSwitchboardDecimalConversion: "InvalidSwitchboardDecimalConversion",
	PythPushWrongAccountOwner:           "PythPushWrongAccountOwner",
	InvalidFeeReceiver:                  "InvalidFeeReceiver",
	InvalidVault:                        "InvalidVault",
	InvalidMarginfiGroup:                "InvalidMarginfiGroup",
	InvalidMarginfiBank:                 "InvalidMarginfiBank",
	InvalidMarginfiLiquidityVault:       "InvalidMarginfiLiquidityVault",
	MarginfiCpiFailed:                   "MarginfiCpiFailed",
	InvalidMarginfiState:                "InvalidMarginfiState",
	MaxActiveLoansExceeded:              "MaxActiveLoansExceeded",
	InvalidActiveLoan:                   "InvalidActiveLoan",
	InvalidAskReverseOrder:              "InvalidAskReverseOrder",
	InvalidAdminKey:                     "InvalidAdminKey",
	InvalidGlobalMint:                   "InvalidGlobalMint",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("UnknownErrorCode(%d)", uint32(c))
}

// Error is the concrete error type returned by every engine operation.
// It carries the stable Code plus a human-readable context string attached
// at the call site — the Go analog of the host-side log line the original
// program writes before returning a ProgramError.
type Error struct {
	Code    Code
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Context)
}

// New builds an *Error carrying the given code and a formatted context string.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Context: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *nixerr.Error with the given code, supporting
// errors.Is(err, nixerr.Code(...)) style comparisons via errors.As.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
