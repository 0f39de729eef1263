package classifier

// Label of a training document
type Label string

const (
	Spam    Label = "spam"
	NonSpam Label = "non-spam"
)

// TrainingExample is one labelled training document
type TrainingExample struct {
	Text  string
	Label Label
}

var corpus = []TrainingExample{
	{Text: "buy now click here", Label: Spam},
	{Text: "free money guaranteed", Label: Spam},
	{Text: "click this link now", Label: Spam},
	{Text: "limited time offer", Label: Spam},
	{Text: "act now before its too late", Label: Spam},
	{Text: "you have won a prize", Label: Spam},
	{Text: "congratulations you are selected", Label: Spam},

	{Text: "this is a great article about technology", Label: NonSpam},
	{Text: "i enjoyed reading your post", Label: NonSpam},
	{Text: "thanks for sharing your thoughts", Label: NonSpam},
	{Text: "what do you think about this topic", Label: NonSpam},
	{Text: "i agree with your perspective", Label: NonSpam},
	{Text: "this is interesting information", Label: NonSpam},
	{Text: "can you explain more about this", Label: NonSpam},
}

// Corpus returns a copy of the built-in training set
func Corpus() []TrainingExample {
	out := make([]TrainingExample, len(corpus))
	copy(out, corpus)
	return out
}
