package task

import (
	"fmt"
	"strings"

	"github.com/abhisek/revlearn/internal/schedule"
)

// Slides returns the instruction slides of a set. keys are the response
// key labels; mainBlocks is the number of main blocks in the session.
func Slides(set schedule.SlideSet, keys []string, mainBlocks int) []string {
	keyList := keyPhrase(keys)

	switch set {
	case schedule.SlidesIntro:
		return []string{
			"Hello! Before beginning the task, please maximize this window and\n" +
				"turn off all notifications on your computer.\n\n" +
				"This game will require you to focus! Please make sure you're in a quiet environment.",
			"In this experiment, you will see a series of images on the screen.\n\n" +
				fmt.Sprintf("Please respond to each image by pressing one of the %s keys on the keyboard:\n", countWord(len(keys))) +
				keyList + ", with your dominant hand.",
			"For each image, there is a button that gives you points.\n\n" +
				"Your goal is to figure out which button makes you win for each image.\n\n" +
				"You will have a couple seconds to respond.\n\n" +
				"Please respond to every image as quickly and accurately as possible.\n\n" +
				"If you do not respond, the trial will be counted as a loss.",
			"If you select the correct button, you will gain +1 point.\n\n" +
				"If you select the incorrect key or do not respond, you will earn 0 points.",
			"Push the space bar to try this task out with two images.\n\n" +
				"Remember to respond with the " + keyList + " keys.",
		}
	case schedule.SlidesReversal:
		return []string{
			"Great job!\n\nNow the task is going to get a little harder.",
			"Before, the correct action for each image stayed the same.\n\n" +
				"Now, the correct action for an image can change after a while.\n\n" +
				"When that happens, you'll need to figure out what the new correct action is!",
			"Push the space bar to try this task out with one image.\n\n" +
				"Remember to respond with the " + keyList + " keys.",
		}
	case schedule.SlidesMainTask:
		return []string{
			"Great job! You have completed the practice section.\n\nYou will now begin the task.",
			fmt.Sprintf("There are %d blocks.\n\n", mainBlocks) +
				"At the beginning of each block, you will be shown the set of images for that block.\n\n" +
				"Some blocks will have more images than others, but your goal is always the same.\n\n" +
				"You can take a short break between each block.",
			"Remember the following important rules:\n\n" +
				"1. At any given time, there is ONLY ONE correct response for each image.\n\n" +
				"2. Within each block, the correct response for each image WILL CHANGE.\n" +
				"   After you gain points for an image multiple times, you will have to find the new key to press to win again.\n\n" +
				"3. One response button MAY be correct for multiple images, or not be correct for any image.",
		}
	}
	return nil
}

// keyPhrase joins key labels as "J, K, or L".
func keyPhrase(keys []string) string {
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = keyLabel(k)
	}
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " or " + labels[1]
	}
	return strings.Join(labels[:len(labels)-1], ", ") + ", or " + labels[len(labels)-1]
}

func keyLabel(k string) string {
	if k == "space" {
		return "Space"
	}
	return strings.ToUpper(k)
}

func countWord(n int) string {
	words := []string{"zero", "one", "two", "three", "four", "five", "six"}
	if n >= 0 && n < len(words) {
		return words[n]
	}
	return fmt.Sprint(n)
}
