package agent

import "math/rand/v2"

// FailureMessage is the reply when every generation attempt failed.
const FailureMessage = "Failed to generate response after multiple attempts. Please refresh the thread and try again. Or contact the admin."

// ThinkingStatus is posted while a channel mention is being answered.
const ThinkingStatus = "is thinking..."

var thinkingStatuses = []string{
	ThinkingStatus,
	"is pondering...",
	"is mulling it over...",
	"is gathering some thoughts...",
}

var welcomeMessages = []string{
	"Hello, I’m Regenie! 🌿 Your eco-focused assistant, here to help with all things green and sustainable 🌍",
	"Hi there! I'm Regenie 🌱 — passionate about the planet and ready to chat about climate, rewilding, renewables and more!",
	"Hey! Regenie here 🌾 Let’s explore how we can make the world greener, together 💚",
	"Welcome! I'm Regenie 🌍 Your guide to sustainability, regenerative living, and environmental science 🌿",
	"Hello! Regenie reporting for green duty 🌱 Ask me anything about nature, renewables, or sustainable choices!",
	"Hi! I'm Regenie 🌾 Here to help you take small (or big!) steps toward a healthier planet 💡",
	"Hey there! Regenie here 🌿 Whether it's composting tips or carbon footprints, I'm your eco pal!",
	"Hi, I’m Regenie 🌱 Need help with climate action, clean energy, or rewilding? Let’s get into it!",
	"Greetings from Regenie! 🌍 Here to share climate knowledge and inspire positive change 🌿",
	"Hey! Regenie in the chat 💬 Ready to talk green energy, ecology, and sustainable solutions 🌞",
}

var initialFollowUps = []string{
	"What are the most impactful daily habits for living sustainably?",
	"How can I reduce my carbon footprint in the UK?",
	"What’s the difference between rewilding and afforestation?",
	"Can you explain regenerative agriculture in simple terms?",
	"What are the latest breakthroughs in renewable energy?",
	"How does climate change affect UK biodiversity?",
	"What sustainable packaging alternatives exist for small businesses?",
	"What’s a good way to start composting at home?",
	"Are electric vehicles truly better for the environment?",
	"Can you recommend UK-based environmental charities or projects to support?",
	"How can urban areas support biodiversity?",
	"What is circular economy and why is it important?",
	"How do wind and solar power compare in efficiency?",
	"What are some eco-friendly gardening tips?",
	"How can I make my home more energy-efficient?",
	"What is carbon offsetting and does it really work?",
	"How does fast fashion harm the environment?",
	"What are green roofs and how do they help cities?",
	"Is plant-based eating better for the planet?",
	"How can communities get involved in rewilding projects?",
}

var initialFollowUpTitles = []string{
	"🌿 Try asking me this!",
	"💡 Need ideas? Start here!",
	"🌍 Curious? Try one of these!",
	"✨ Ask away — or pick a prompt!",
	"📚 Learn something new today!",
	"🧠 Here’s some inspo to get going!",
	"🌱 Explore a green idea!",
	"👋 Not sure what to ask? Try this!",
	"🗣️ Start the convo with these!",
	"🤔 Try one of these to begin!",
}

var followUpTitles = []string{
	"🔎 Want to dig deeper?",
	"💬 Let’s keep the convo going!",
	"🌿 Here's what else we could explore...",
	"🤓 Follow-up ideas for you!",
	"✨ More you might find interesting!",
	"📌 Want to go further?",
	"🌱 Here’s another angle!",
	"🧭 Explore this next?",
	"📖 Keep learning with these!",
	"🔁 Curious about more?",
}

// initialFollowUpCount is how many starter prompts a new thread offers.
const initialFollowUpCount = 3

func pick(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[rand.IntN(len(list))]
}

// randomSubList returns n distinct elements of list in random order.
func randomSubList(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	idx := rand.Perm(len(list))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = list[j]
	}
	return out
}
