// Package nvt implements the Telnet NVT byte-stream parser: input
// classification, IAC/option framing, RFC 1143 Q-method negotiation
// and the recognized sub-option protocols.
package nvt

// Telnet option codes this implementation recognizes.
const (
	OptBinary     = 0
	OptSGA        = 3
	OptTType      = 24
	OptEOR        = 25
	OptNAWS       = 31
	OptOldEnviron = 36
	OptNewEnviron = 39
	OptCharset    = 42
	OptStartTLS   = 46
)

// Telnet command bytes.
const (
	cmdSE   = 240
	cmdNOP  = 241
	cmdDM   = 242
	cmdBRK  = 243
	cmdIP   = 244
	cmdAO   = 245
	cmdAYT  = 246
	cmdEC   = 247
	cmdEL   = 248
	cmdGA   = 249
	cmdSB   = 250
	cmdWILL = 251
	cmdWONT = 252
	cmdDO   = 253
	cmdDONT = 254
	cmdIAC  = 255
	cmdEOR  = 239
)

// Sub-option command bytes. IS/SEND head the TTYPE and NEW-ENVIRON
// messages; VAR/VALUE/USERVAR tag the records within a NEW-ENVIRON IS;
// ACCEPTED/REJECTED/REQUEST belong to CHARSET; FOLLOWS to STARTTLS.
const (
	subIS       = 0
	subSEND     = 1
	subRequest  = 1
	subAccepted = 2
	subRejected = 3
	subFollows  = 1

	envVar     = 0
	envValue   = 1
	envESC     = 2
	envUserVar = 3
)
