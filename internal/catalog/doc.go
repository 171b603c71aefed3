// Package catalog stores generated video clips and decides when a scene can
// reuse one instead of paying for a fresh generation. Clips carry parsed
// semantic components (character, action, setting, detail tags) plus the
// prompt that generated them, and the matcher scores scenes against those
// components with a diversity penalty so one clip does not dominate a video.
package catalog
