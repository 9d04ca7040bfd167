package textproc

// contractions are expanded before tokenizing so the negation survives as
// its own token ("don't" -> "do not").
var contractions = map[string]string{
	"i'm": "i am", "i've": "i have", "i'll": "i will", "i'd": "i would",
	"can't": "cannot", "won't": "will not", "don't": "do not",
	"doesn't": "does not", "didn't": "did not", "isn't": "is not",
	"aren't": "are not", "wasn't": "was not", "weren't": "were not",
	"hasn't": "has not", "haven't": "have not", "hadn't": "had not",
	"wouldn't": "would not", "shouldn't": "should not", "couldn't": "could not",
	"mustn't": "must not", "needn't": "need not", "ain't": "is not",
	"you're": "you are", "you've": "you have", "you'll": "you will", "you'd": "you would",
	"he's": "he is", "she's": "she is", "it's": "it is", "that's": "that is",
	"what's": "what is", "where's": "where is", "who's": "who is",
	"there's": "there is", "we're": "we are", "we've": "we have",
	"they're": "they are", "they've": "they have",
}
