package categorize

import "regexp"

// DefaultCategories is the taxonomy used when the caller supplies none.
// Order matters: the last entry is the terminal fallback.
var DefaultCategories = []string{
	"Groceries",
	"Restaurants",
	"Transport",
	"Utilities",
	"Housing",
	"Health",
	"Shopping",
	"Entertainment",
	"Subscriptions",
	"Travel",
	"Income",
	"Transfers",
	"Taxes & Fees",
	"Other",
}

// merchantPattern matches a known merchant in an accent-stripped,
// lower-cased description. Higher priority wins when several match.
type merchantPattern struct {
	re       *regexp.Regexp
	category string
	priority int
}

// merchantPatterns are checked before any sign or keyword heuristic.
// Keep them specific: a pattern here overrides everything except an
// explicit user preference.
var merchantPatterns = []merchantPattern{
	{regexp.MustCompile(`\bmercadona\b`), "Groceries", 100},
	{regexp.MustCompile(`\bconsum\b`), "Groceries", 100},
	// "dia" alone is a common Spanish word ("menu del dia"); only match
	// the supermarket's branded forms.
	{regexp.MustCompile(`^dia\b|\bdia\s*%|\bsupermercados?\s+dia\b|\bdia\s+(?:retail|supermercados?)\b`), "Groceries", 60},
	{regexp.MustCompile(`\blidl\b`), "Groceries", 100},
	{regexp.MustCompile(`\baldi\b`), "Groceries", 100},
	{regexp.MustCompile(`\bcarrefour\b`), "Groceries", 100},
	{regexp.MustCompile(`\beroski\b`), "Groceries", 100},
	{regexp.MustCompile(`\balcampo\b`), "Groceries", 100},

	{regexp.MustCompile(`\bmcdonald`), "Restaurants", 90},
	{regexp.MustCompile(`\bburger king\b`), "Restaurants", 90},
	{regexp.MustCompile(`\btelepizza\b`), "Restaurants", 90},
	{regexp.MustCompile(`\bglovo\b`), "Restaurants", 90},
	{regexp.MustCompile(`\bjust eat\b`), "Restaurants", 90},

	{regexp.MustCompile(`\brenfe\b`), "Transport", 90},
	{regexp.MustCompile(`\bmetro de \w+`), "Transport", 90},
	{regexp.MustCompile(`\bcabify\b`), "Transport", 90},
	{regexp.MustCompile(`\buber\b`), "Transport", 50},
	{regexp.MustCompile(`\buber\s+eats\b`), "Restaurants", 90},
	{regexp.MustCompile(`\brepsol\b`), "Transport", 90},
	{regexp.MustCompile(`\bcepsa\b`), "Transport", 90},

	{regexp.MustCompile(`\biberdrola\b`), "Utilities", 90},
	{regexp.MustCompile(`\bendesa\b`), "Utilities", 90},
	{regexp.MustCompile(`\bnaturgy\b`), "Utilities", 90},
	{regexp.MustCompile(`\bmovistar\b`), "Utilities", 90},
	{regexp.MustCompile(`\bvodafone\b`), "Utilities", 90},
	{regexp.MustCompile(`\borange\b`), "Utilities", 70},

	{regexp.MustCompile(`\bfarmacia\b`), "Health", 90},
	{regexp.MustCompile(`\bclinica\b`), "Health", 90},

	{regexp.MustCompile(`\bamazon\b`), "Shopping", 90},
	{regexp.MustCompile(`\baliexpress\b`), "Shopping", 90},
	{regexp.MustCompile(`\bzara\b`), "Shopping", 90},
	{regexp.MustCompile(`\bdecathlon\b`), "Shopping", 90},
	{regexp.MustCompile(`\bel corte ingles\b`), "Shopping", 90},

	{regexp.MustCompile(`\bnetflix\b`), "Subscriptions", 90},
	{regexp.MustCompile(`\bspotify\b`), "Subscriptions", 90},
	{regexp.MustCompile(`\bhbo\b`), "Subscriptions", 90},
	{regexp.MustCompile(`\bdisney\b`), "Subscriptions", 90},

	{regexp.MustCompile(`\bbooking\.?com\b`), "Travel", 90},
	{regexp.MustCompile(`\bairbnb\b`), "Travel", 90},
	{regexp.MustCompile(`\bryanair\b`), "Travel", 90},
	{regexp.MustCompile(`\bvueling\b`), "Travel", 90},
	{regexp.MustCompile(`\biberia\b`), "Travel", 90},
}

// Amount-sign gates for rules and keyword lists.
type amountSign int

const (
	signAny amountSign = iota
	signPositive
	signNegative
)

func (s amountSign) accepts(amount float64) bool {
	switch s {
	case signPositive:
		return amount > 0
	case signNegative:
		return amount < 0
	default:
		return true
	}
}

// signRule is the rule-based fallback after patterns and AI: substring
// patterns gated by the sign of the amount, checked in order.
type signRule struct {
	category string
	patterns []string
	sign     amountSign
}

var signRules = []signRule{
	{"Income", []string{"nomina", "salario", "payroll", "pension"}, signPositive},
	{"Income", []string{"devolucion", "reembolso", "abono intereses"}, signPositive},
	{"Transfers", []string{"bizum", "transferencia", "traspaso"}, signAny},
	{"Housing", []string{"alquiler", "hipoteca", "comunidad de propietarios"}, signNegative},
	{"Taxes & Fees", []string{"impuesto", "hacienda", "agencia tributaria", "comision", "mantenimiento cuenta"}, signNegative},
	{"Utilities", []string{"recibo luz", "recibo agua", "recibo gas"}, signNegative},
}

// categoryKeywords feed the last-resort scoring pass. Keywords of six or
// more characters score double; the highest total wins.
var categoryKeywords = map[string]struct {
	keywords []string
	sign     amountSign
}{
	"Groceries":     {[]string{"supermercado", "supermarket", "fruteria", "carniceria", "panaderia"}, signNegative},
	"Restaurants":   {[]string{"restaurante", "cafeteria", "pizzeria", "kebab", "sushi", "bar "}, signNegative},
	"Transport":     {[]string{"gasolinera", "parking", "autopista", "peaje", "taxi", "bus"}, signNegative},
	"Utilities":     {[]string{"electricidad", "telefono", "internet", "fibra", "movil"}, signNegative},
	"Housing":       {[]string{"alquiler", "inmobiliaria", "fianza"}, signNegative},
	"Health":        {[]string{"dentista", "oculista", "hospital", "seguro medico", "fisioterapia"}, signNegative},
	"Shopping":      {[]string{"tienda", "moda", "electronica", "libreria", "jugueteria"}, signNegative},
	"Entertainment": {[]string{"cine", "teatro", "concierto", "entradas", "museo"}, signNegative},
	"Subscriptions": {[]string{"suscripcion", "subscription", "mensualidad", "cuota socio"}, signNegative},
	"Travel":        {[]string{"hotel", "hostal", "vuelo", "billete", "equipaje"}, signNegative},
	"Income":        {[]string{"ingreso", "nomina", "salario", "factura cobrada", "venta"}, signPositive},
	"Transfers":     {[]string{"transferencia", "bizum", "traspaso", "envio dinero"}, signAny},
	"Taxes & Fees":  {[]string{"comision", "interes", "impuesto", "tasa", "recargo"}, signNegative},
}

// categoryAliases maps model or user spellings back onto the taxonomy.
// Matching is done on folded keys.
var categoryAliases = map[string]string{
	"fees":           "Taxes & Fees",
	"taxes":          "Taxes & Fees",
	"bank fees":      "Taxes & Fees",
	"grocery":        "Groceries",
	"supermarket":    "Groceries",
	"food":           "Groceries",
	"dining":         "Restaurants",
	"eating out":     "Restaurants",
	"restaurant":     "Restaurants",
	"transportation": "Transport",
	"fuel":           "Transport",
	"bills":          "Utilities",
	"rent":           "Housing",
	"medical":        "Health",
	"salary":         "Income",
	"transfer":       "Transfers",
	"subscription":   "Subscriptions",
	"entertainment":  "Entertainment",
	"miscellaneous":  "Other",
	"misc":           "Other",
	"uncategorized":  "Other",
}
