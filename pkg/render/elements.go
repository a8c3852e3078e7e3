package render

// voidElements have no closing tag.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// inlineElements stay on one line in pretty output.
var inlineElements = map[string]bool{
	"a":      true,
	"b":      true,
	"code":   true,
	"em":     true,
	"i":      true,
	"label":  true,
	"small":  true,
	"span":   true,
	"strong": true,
	"sub":    true,
	"sup":    true,
	"time":   true,
}

// booleanAttrs are written as a bare name when true and omitted when false.
var booleanAttrs = map[string]bool{
	"autofocus": true,
	"checked":   true,
	"disabled":  true,
	"hidden":    true,
	"multiple":  true,
	"open":      true,
	"readonly":  true,
	"required":  true,
	"selected":  true,
}

// attrAliases maps prop names to attribute names.
var attrAliases = map[string]string{
	"className": "class",
	"htmlFor":   "for",
}
