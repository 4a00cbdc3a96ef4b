package condition

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ValidateRawShape inspects a condition tree's raw JSON bytes before the
// caller pays for a full strict unmarshal into domain.Node. It rejects
// payloads that are obviously malformed (not an object, or a leaf node
// missing "fact"/"operator") the same way the teacher's datafeed client
// uses gjson to read a JSON shape out of a raw response ahead of decoding
// it into a typed struct.
func ValidateRawShape(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("condition tree is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return fmt.Errorf("condition tree root must be a JSON object")
	}
	return validateRawNode(root, "$")
}

func validateRawNode(node gjson.Result, path string) error {
	hasAll := node.Get("all").Exists()
	hasAny := node.Get("any").Exists()
	hasNot := node.Get("not").Exists()
	hasFact := node.Get("fact").Exists()

	branches := 0
	for _, present := range []bool{hasAll, hasAny, hasNot, hasFact} {
		if present {
			branches++
		}
	}
	if branches == 0 {
		return fmt.Errorf("%s: node must be a leaf (fact/operator) or a combinator (all/any/not)", path)
	}
	if branches > 1 {
		return fmt.Errorf("%s: node mixes a combinator with a leaf or another combinator", path)
	}

	switch {
	case hasFact:
		if node.Get("fact").Type != gjson.String {
			return fmt.Errorf("%s.fact: must be a string", path)
		}
		if node.Get("operator").Type != gjson.String {
			return fmt.Errorf("%s.operator: must be a string", path)
		}
	case hasAll, hasAny:
		key := "all"
		if hasAny {
			key = "any"
		}
		children := node.Get(key)
		if !children.IsArray() {
			return fmt.Errorf("%s.%s: must be an array", path, key)
		}
		var err error
		i := 0
		children.ForEach(func(_, child gjson.Result) bool {
			err = validateRawNode(child, fmt.Sprintf("%s.%s[%d]", path, key, i))
			i++
			return err == nil
		})
		if err != nil {
			return err
		}
	case hasNot:
		child := node.Get("not")
		if !child.IsObject() {
			return fmt.Errorf("%s.not: must be an object", path)
		}
		if err := validateRawNode(child, path+".not"); err != nil {
			return err
		}
	}
	return nil
}
