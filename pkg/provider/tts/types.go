package tts

// Speaker identifies one selectable voice of a TTS backend. Engines that
// expose several speaking styles per character report one Speaker per style.
type Speaker struct {
	// ID is the numeric identifier sent with synthesis requests.
	ID int

	// Name is the character name as reported by the engine.
	Name string

	// Style is the speaking style ("ノーマル", "あまあま", ...). Empty when
	// the engine has no style concept.
	Style string
}
