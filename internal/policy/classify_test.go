package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lyall/MandragoraFix/internal/sigs"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(sigs.Default().Widgets)
	cases := []struct {
		name string
		want []Kind
	}{
		{"BP_HUD_C_2147482", []Kind{KindHUD}},
		{"WBP_CinematicOverlay_C_0", []Kind{KindCutscene}},
		{"WBP_LevelTransition_C_12", []Kind{KindTransition}},
		{"WBP_PauseMenu_C_1", []Kind{KindScaleRoot}},
		{"Default__WBP_PauseMenu_C", nil},
		{"WBP_Subtitles_C_4", nil},
		{"MS_Intro", nil},
		// order-dependent: the HUD match does not stop the other checks
		{"BP_HUD_C_WBP_CinematicOverlay_C", []Kind{KindHUD, KindCutscene}},
		{"WBP_CinematicOverlay_C_WBP_LevelTransition_C", []Kind{KindCutscene, KindTransition}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.name), tc.name)
	}

	assert.True(t, c.IsMovie("MS_Chapter_03"))
	assert.False(t, c.IsMovie("BP_HUD_C_0"))
	assert.Equal(t, "FullScreenScaleBox", c.ScaleBox())
}

func TestClassifyEmptyPatterns(t *testing.T) {
	c := NewClassifier(sigs.Widgets{HUD: []string{""}})
	// an empty pattern never matches
	assert.Equal(t, []Kind{KindScaleRoot}, c.Classify("Anything"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "hud", KindHUD.String())
	assert.Equal(t, "movie", KindMovie.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
