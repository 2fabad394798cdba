package proto

import "strconv"

// TermType is the opcode of a term in a serialized query.
type TermType int

const (
	// structural
	TermDatum       TermType = 1
	TermMakeArray   TermType = 2
	TermMakeObj     TermType = 3
	TermVar         TermType = 10
	TermImplicitVar TermType = 13
	TermFunc        TermType = 69

	// database / table DDL
	TermDB          TermType = 14
	TermTable       TermType = 15
	TermDBCreate    TermType = 57
	TermDBDrop      TermType = 58
	TermDBList      TermType = 59
	TermTableCreate TermType = 60
	TermTableDrop   TermType = 61
	TermTableList   TermType = 62

	// selection
	TermGet     TermType = 16
	TermGetAll  TermType = 78
	TermBetween TermType = 36
	TermFilter  TermType = 39

	// comparison and logic
	TermEq  TermType = 17
	TermNe  TermType = 18
	TermLt  TermType = 19
	TermLe  TermType = 20
	TermGt  TermType = 21
	TermGe  TermType = 22
	TermNot TermType = 23
	TermOr  TermType = 66
	TermAnd TermType = 67

	// arithmetic
	TermAdd TermType = 24
	TermSub TermType = 25
	TermMul TermType = 26
	TermDiv TermType = 27

	// documents and sequences
	TermGetField TermType = 31
	TermPluck    TermType = 33
	TermWithout  TermType = 34
	TermOrderBy  TermType = 41
	TermCount    TermType = 43
	TermSkip     TermType = 70
	TermLimit    TermType = 71
	TermAsc      TermType = 73
	TermDesc     TermType = 74
	TermBracket  TermType = 170
	TermMinVal   TermType = 180
	TermMaxVal   TermType = 181

	// writes
	TermUpdate  TermType = 53
	TermDelete  TermType = 54
	TermReplace TermType = 55
	TermInsert  TermType = 56
)

var termNames = map[TermType]string{
	TermDatum:       "DATUM",
	TermMakeArray:   "MAKE_ARRAY",
	TermMakeObj:     "MAKE_OBJ",
	TermVar:         "VAR",
	TermImplicitVar: "IMPLICIT_VAR",
	TermFunc:        "FUNC",
	TermDB:          "DB",
	TermTable:       "TABLE",
	TermDBCreate:    "DB_CREATE",
	TermDBDrop:      "DB_DROP",
	TermDBList:      "DB_LIST",
	TermTableCreate: "TABLE_CREATE",
	TermTableDrop:   "TABLE_DROP",
	TermTableList:   "TABLE_LIST",
	TermGet:         "GET",
	TermGetAll:      "GET_ALL",
	TermBetween:     "BETWEEN",
	TermFilter:      "FILTER",
	TermEq:          "EQ",
	TermNe:          "NE",
	TermLt:          "LT",
	TermLe:          "LE",
	TermGt:          "GT",
	TermGe:          "GE",
	TermNot:         "NOT",
	TermOr:          "OR",
	TermAnd:         "AND",
	TermAdd:         "ADD",
	TermSub:         "SUB",
	TermMul:         "MUL",
	TermDiv:         "DIV",
	TermGetField:    "GET_FIELD",
	TermPluck:       "PLUCK",
	TermWithout:     "WITHOUT",
	TermOrderBy:     "ORDER_BY",
	TermCount:       "COUNT",
	TermSkip:        "SKIP",
	TermLimit:       "LIMIT",
	TermAsc:         "ASC",
	TermDesc:        "DESC",
	TermBracket:     "BRACKET",
	TermMinVal:      "MINVAL",
	TermMaxVal:      "MAXVAL",
	TermUpdate:      "UPDATE",
	TermDelete:      "DELETE",
	TermReplace:     "REPLACE",
	TermInsert:      "INSERT",
}

// String returns the protocol name of the opcode, e.g. "TABLE_CREATE".
func (t TermType) String() string {
	if s, ok := termNames[t]; ok {
		return s
	}
	return "TermType(" + strconv.Itoa(int(t)) + ")"
}
