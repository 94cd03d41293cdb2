package store

import "context"

// seedEntry is a starter knowledge record.
type seedEntry struct {
	Title    string
	Content  string
	Category string
	Tags     []string
}

// starterKnowledge is the built-in AI-topic corpus loaded by Seed.
var starterKnowledge = []seedEntry{
	{
		Title:    "Machine Learning Fundamentals",
		Content:  "Machine learning is a subset of artificial intelligence that enables computers to learn and make decisions without being explicitly programmed. It uses algorithms to identify patterns in data and make predictions or decisions based on those patterns. The three main types of machine learning are supervised learning, unsupervised learning, and reinforcement learning.",
		Category: "Machine Learning",
		Tags:     []string{"machine learning", "AI", "algorithms", "supervised learning", "unsupervised learning", "reinforcement learning"},
	},
	{
		Title:    "Neural Networks and Deep Learning",
		Content:  "Neural networks are computing systems inspired by biological neural networks. They consist of interconnected nodes (neurons) that process information. Deep learning uses multiple layers of neural networks to learn complex patterns. Popular architectures include Convolutional Neural Networks (CNNs) for image processing and Recurrent Neural Networks (RNNs) for sequential data.",
		Category: "Deep Learning",
		Tags:     []string{"neural networks", "deep learning", "CNN", "RNN", "artificial neural networks", "layers"},
	},
	{
		Title:    "Natural Language Processing (NLP)",
		Content:  "NLP is a branch of AI that focuses on the interaction between computers and human language. It enables machines to understand, interpret, and generate human language. Key applications include machine translation, sentiment analysis, chatbots, and text summarization. Modern NLP heavily relies on transformer models like BERT and GPT.",
		Category: "NLP",
		Tags:     []string{"NLP", "natural language processing", "BERT", "GPT", "transformer", "language models"},
	},
	{
		Title:    "Computer Vision",
		Content:  "Computer vision is a field of AI that enables computers to interpret and understand visual information from the world. It involves tasks like image classification, object detection, facial recognition, and image segmentation. Deep learning models, particularly CNNs, have revolutionized computer vision applications.",
		Category: "Computer Vision",
		Tags:     []string{"computer vision", "image processing", "object detection", "facial recognition", "CNN", "image classification"},
	},
	{
		Title:    "AI Ethics and Responsible AI",
		Content:  "AI ethics involves ensuring that artificial intelligence systems are developed and deployed responsibly. Key concerns include bias and fairness, transparency, privacy, accountability, and safety. Organizations should implement ethical guidelines and frameworks to ensure AI systems benefit society while minimizing potential harms.",
		Category: "AI Ethics",
		Tags:     []string{"AI ethics", "responsible AI", "bias", "fairness", "transparency", "privacy", "accountability"},
	},
	{
		Title:    "Reinforcement Learning",
		Content:  "Reinforcement learning is a type of machine learning where an agent learns to make decisions by taking actions in an environment to maximize cumulative rewards. The agent learns through trial and error, receiving feedback in the form of rewards or penalties. Applications include game playing, robotics, and autonomous systems.",
		Category: "Reinforcement Learning",
		Tags:     []string{"reinforcement learning", "RL", "agent", "environment", "rewards", "Q-learning", "policy gradient"},
	},
	{
		Title:    "Large Language Models (LLMs)",
		Content:  "Large Language Models are AI models trained on vast amounts of text data to understand and generate human language. Models like GPT, BERT, and LLaMA have demonstrated remarkable capabilities in text generation, translation, and understanding. They use transformer architecture and require significant computational resources for training.",
		Category: "Language Models",
		Tags:     []string{"LLM", "large language models", "GPT", "BERT", "LLaMA", "transformer", "text generation"},
	},
	{
		Title:    "AI in Healthcare",
		Content:  "AI is transforming healthcare through applications like medical image analysis, drug discovery, personalized medicine, and predictive analytics. Machine learning algorithms can analyze medical images to detect diseases, predict patient outcomes, and assist in diagnosis. However, healthcare AI must meet strict regulatory requirements and ensure patient privacy.",
		Category: "AI Applications",
		Tags:     []string{"AI healthcare", "medical AI", "drug discovery", "medical imaging", "personalized medicine", "predictive analytics"},
	},
	{
		Title:    "AI Safety and Alignment",
		Content:  "AI safety focuses on ensuring that AI systems behave as intended and don't cause unintended harm. AI alignment aims to make AI systems' goals and values align with human values. Key challenges include value alignment, robustness, and interpretability. Research in this area is crucial for the safe development of advanced AI systems.",
		Category: "AI Safety",
		Tags:     []string{"AI safety", "AI alignment", "value alignment", "robustness", "interpretability", "control"},
	},
	{
		Title:    "Edge AI and IoT",
		Content:  "Edge AI refers to running AI algorithms on edge devices (like smartphones, IoT devices) rather than in the cloud. This approach reduces latency, improves privacy, and works offline. Applications include smart cameras, wearable devices, and autonomous vehicles. Edge AI requires optimized models that can run efficiently on resource-constrained devices.",
		Category: "Edge Computing",
		Tags:     []string{"edge AI", "IoT", "edge computing", "smart devices", "latency", "privacy", "autonomous vehicles"},
	},
}

// Seed inserts the starter corpus. It returns the number of entries written.
func Seed(ctx context.Context, s Store) (int, error) {
	for i, entry := range starterKnowledge {
		if _, err := s.AddKnowledge(ctx, entry.Title, entry.Content, entry.Category, entry.Tags); err != nil {
			return i, err
		}
	}
	return len(starterKnowledge), nil
}
