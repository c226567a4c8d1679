package terminal

import "github.com/davidlandreman/corekernel/kernel/input/ps2"

// shiftedLetters/plainLetters map the alphabetic keys to their printable
// characters; everything else goes through the punctuation table below.
var plainLetters = map[ps2.KeyCode]byte{
	ps2.KeyA: 'a', ps2.KeyB: 'b', ps2.KeyC: 'c', ps2.KeyD: 'd', ps2.KeyE: 'e',
	ps2.KeyF: 'f', ps2.KeyG: 'g', ps2.KeyH: 'h', ps2.KeyI: 'i', ps2.KeyJ: 'j',
	ps2.KeyK: 'k', ps2.KeyL: 'l', ps2.KeyM: 'm', ps2.KeyN: 'n', ps2.KeyO: 'o',
	ps2.KeyP: 'p', ps2.KeyQ: 'q', ps2.KeyR: 'r', ps2.KeyS: 's', ps2.KeyT: 't',
	ps2.KeyU: 'u', ps2.KeyV: 'v', ps2.KeyW: 'w', ps2.KeyX: 'x', ps2.KeyY: 'y',
	ps2.KeyZ: 'z',
}

var shiftedLetters = map[ps2.KeyCode]byte{
	ps2.KeyA: 'A', ps2.KeyB: 'B', ps2.KeyC: 'C', ps2.KeyD: 'D', ps2.KeyE: 'E',
	ps2.KeyF: 'F', ps2.KeyG: 'G', ps2.KeyH: 'H', ps2.KeyI: 'I', ps2.KeyJ: 'J',
	ps2.KeyK: 'K', ps2.KeyL: 'L', ps2.KeyM: 'M', ps2.KeyN: 'N', ps2.KeyO: 'O',
	ps2.KeyP: 'P', ps2.KeyQ: 'Q', ps2.KeyR: 'R', ps2.KeyS: 'S', ps2.KeyT: 'T',
	ps2.KeyU: 'U', ps2.KeyV: 'V', ps2.KeyW: 'W', ps2.KeyX: 'X', ps2.KeyY: 'Y',
	ps2.KeyZ: 'Z',
}

var plainPunctuation = map[ps2.KeyCode]byte{
	ps2.Key0: '0', ps2.Key1: '1', ps2.Key2: '2', ps2.Key3: '3', ps2.Key4: '4',
	ps2.Key5: '5', ps2.Key6: '6', ps2.Key7: '7', ps2.Key8: '8', ps2.Key9: '9',
	ps2.KeySpace: ' ', ps2.KeyEnter: '\n', ps2.KeyTab: '\t',
	ps2.KeyComma: ',', ps2.KeyPeriod: '.', ps2.KeySlash: '/',
	ps2.KeySemicolon: ';', ps2.KeyQuote: '\'',
	ps2.KeyLeftBracket: '[', ps2.KeyRightBracket: ']', ps2.KeyBackslash: '\\',
	ps2.KeyMinus: '-', ps2.KeyEquals: '=', ps2.KeyBacktick: '`',
}

var shiftedPunctuation = map[ps2.KeyCode]byte{
	ps2.Key0: ')', ps2.Key1: '!', ps2.Key2: '@', ps2.Key3: '#', ps2.Key4: '$',
	ps2.Key5: '%', ps2.Key6: '^', ps2.Key7: '&', ps2.Key8: '*', ps2.Key9: '(',
	ps2.KeySpace: ' ', ps2.KeyEnter: '\n', ps2.KeyTab: '\t',
	ps2.KeyComma: '<', ps2.KeyPeriod: '>', ps2.KeySlash: '?',
	ps2.KeySemicolon: ':', ps2.KeyQuote: '"',
	ps2.KeyLeftBracket: '{', ps2.KeyRightBracket: '}', ps2.KeyBackslash: '|',
	ps2.KeyMinus: '_', ps2.KeyEquals: '+', ps2.KeyBacktick: '~',
}

// keycodeToChar maps a decoded key and its modifier state to the character
// it produces, or false for keys that do not print (arrows, function keys,
// bare modifiers, and so on).
func keycodeToChar(code ps2.KeyCode, mods ps2.KeyModifiers) (byte, bool) {
	table := plainLetters
	punct := plainPunctuation
	if mods.Shift {
		table, punct = shiftedLetters, shiftedPunctuation
	}
	if ch, ok := table[code]; ok {
		return ch, true
	}
	if ch, ok := punct[code]; ok {
		return ch, true
	}
	return 0, false
}
