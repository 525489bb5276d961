package grocery

import "strings"

// FallbackCategory is used when a name matches no keyword.
const FallbackCategory = "Other"

// Categorize guesses the default category name for an item name. Whole-name
// matches win; otherwise the first keyword contained in the name decides.
func Categorize(itemName string) string {
	name := NormalizeName(itemName)
	if name == "" {
		return FallbackCategory
	}

	if cat, ok := wholeNames[name]; ok {
		return cat
	}

	for _, kw := range keywords {
		if strings.Contains(name, kw.word) {
			return kw.category
		}
	}

	return FallbackCategory
}

var wholeNames = map[string]string{}

type keyword struct {
	word     string
	category string
}

var keywords []keyword

// categoryWords lists the default categories with their keywords. Within a
// category, longer phrases come first; categories earlier in the slice win
// ties, so "frozen" and "canned" sit ahead of the produce they qualify.
var categoryWords = []struct {
	category string
	words    []string
}{
	{"Frozen", []string{"frozen", "ice cream", "popsicle", "waffles", "tater tots"}},
	{"Canned Goods", []string{"canned", "black beans", "kidney beans", "chickpeas", "tomato paste", "tomato sauce", "soup", "broth", "tuna can"}},
	{"Personal Care", []string{"toothpaste", "toothbrush", "shampoo", "conditioner", "deodorant", "body wash", "floss", "razor", "lotion", "sunscreen"}},
	{"Household", []string{"paper towels", "toilet paper", "trash bags", "dish soap", "laundry", "detergent", "sponge", "aluminum foil", "plastic wrap", "napkins", "bleach"}},
	{"Meat", []string{"chicken", "ground beef", "ground turkey", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak", "salmon", "shrimp", "fish", "lamb", "hot dog", "deli meat"}},
	{"Dairy", []string{"cream cheese", "sour cream", "heavy cream", "cottage cheese", "half and half", "yogurt", "cheese", "milk", "butter", "cream", "eggs", "egg"}},
	{"Bakery", []string{"bread", "bagel", "tortilla", "rolls", "buns", "croissant", "muffin", "baguette", "pita"}},
	{"Beverages", []string{"sparkling water", "orange juice", "coffee", "tea", "juice", "soda", "water", "beer", "wine", "kombucha"}},
	{"Snacks", []string{"chips", "crackers", "pretzels", "popcorn", "cookies", "granola bar", "nuts", "chocolate", "candy"}},
	{"Produce", []string{"sweet potato", "bell pepper", "green onion", "apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato", "onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot", "celery", "cucumber", "pepper", "mushroom", "grape", "berries", "berry", "melon", "peach", "pear", "cilantro", "basil", "parsley", "ginger", "zucchini", "asparagus"}},
}

func init() {
	for _, cw := range categoryWords {
		for _, w := range cw.words {
			if _, ok := wholeNames[w]; !ok {
				wholeNames[w] = cw.category
			}
			keywords = append(keywords, keyword{word: w, category: cw.category})
		}
	}
}
