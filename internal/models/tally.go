package models

// OptionTally counts votes for one option of one question.
type OptionTally struct {
	QuestionID  int `json:"question_id"`
	OptionIndex int `json:"option_index"`
	Count       int `json:"count"`
}

// OptionVote is the result of a single vote.
type OptionVote struct {
	QuestionID  int  `json:"question_id"`
	OptionIndex int  `json:"option_index"`
	WasExisting bool `json:"existing_row"`
}
