package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// stateCodes maps canonical state names to their two-letter codes used in
// generated institution ids.
var stateCodes = map[string]string{
	"ANDAMAN AND NICOBAR ISLANDS": "AN",
	"ANDHRA PRADESH":              "AP",
	"ARUNACHAL PRADESH":           "AR",
	"ASSAM":                       "AS",
	"BIHAR":                       "BR",
	"CHANDIGARH":                  "CH",
	"CHHATTISGARH":                "CG",
	"DADRA AND NAGAR HAVELI":      "DN",
	"DAMAN AND DIU":               "DD",
	"DELHI":                       "DL",
	"GOA":                         "GA",
	"GUJARAT":                     "GJ",
	"HARYANA":                     "HR",
	"HIMACHAL PRADESH":            "HP",
	"JAMMU AND KASHMIR":           "JK",
	"JHARKHAND":                   "JH",
	"KARNATAKA":                   "KA",
	"KERALA":                      "KL",
	"LADAKH":                      "LD",
	"LAKSHADWEEP":                 "LS",
	"MADHYA PRADESH":              "MP",
	"MAHARASHTRA":                 "MH",
	"MANIPUR":                     "MN",
	"MEGHALAYA":                   "ML",
	"MIZORAM":                     "MZ",
	"NAGALAND":                    "NL",
	"ODISHA":                      "OD",
	"PUDUCHERRY":                  "PY",
	"PUNJAB":                      "PB",
	"RAJASTHAN":                   "RJ",
	"SIKKIM":                      "SK",
	"TAMIL NADU":                  "TN",
	"TELANGANA":                   "TG",
	"TRIPURA":                     "TR",
	"UTTAR PRADESH":               "UP",
	"UTTARAKHAND":                 "UK",
	"WEST BENGAL":                 "WB",
}

var reNonAlnum = regexp.MustCompile(`[^A-Z0-9 ]`)

// GenerateID builds a deterministic id for a newly added institution from
// its name, state and ledger sequence number. Identical inputs always
// produce identical ids, so repeated review runs never fork new identities
// for the same decision.
func GenerateID(name, state string, seq int) string {
	code := stateCode(state)

	basis := strings.ToUpper(strings.TrimSpace(name)) + "|" + strings.ToUpper(strings.TrimSpace(state))
	sum := sha256.Sum256([]byte(basis))
	digest := hex.EncodeToString(sum[:])[:8]

	return fmt.Sprintf("NEW-%s-%s-%03d", code, strings.ToUpper(digest), seq)
}

func stateCode(state string) string {
	s := strings.ToUpper(strings.TrimSpace(state))
	if code, ok := stateCodes[s]; ok {
		return code
	}

	s = reNonAlnum.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) >= 2 {
		return s[:2]
	}
	if len(s) == 1 {
		return s + "X"
	}
	return "XX"
}
